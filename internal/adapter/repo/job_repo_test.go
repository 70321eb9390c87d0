package repo

import (
	"strings"
	"testing"
)

// The job and model statements carry guard clauses the state machine relies
// on. These pin the clauses so an edit to the SQL cannot silently drop them.

func TestCreateJobSQLGuardsLiveJobs(t *testing.T) {
	if !strings.Contains(createJobSQL, "WHERE NOT EXISTS") {
		t.Fatalf("createJobSQL lost the guarded insert:\n%s", createJobSQL)
	}
	if !strings.Contains(createJobSQL, "status NOT IN ('SUCCEEDED', 'FAILED')") {
		t.Fatalf("createJobSQL no longer scopes the conflict check to live jobs:\n%s", createJobSQL)
	}
}

func TestApplyPollSQLGuardsTerminalAndProgress(t *testing.T) {
	if !strings.Contains(applyPollSQL, "status NOT IN ('SUCCEEDED', 'FAILED')") {
		t.Fatalf("applyPollSQL no longer skips terminal rows:\n%s", applyPollSQL)
	}
	if !strings.Contains(applyPollSQL, "GREATEST(progress, $3)") {
		t.Fatalf("applyPollSQL lost the monotonic progress clamp:\n%s", applyPollSQL)
	}
	if !strings.Contains(applyPollSQL, "($2 IN ('SUCCEEDED', 'FAILED') OR $3 >= progress)") {
		t.Fatalf("applyPollSQL no longer rejects stale non-terminal snapshots:\n%s", applyPollSQL)
	}
	if !strings.Contains(applyPollSQL, "RETURNING task_id") {
		t.Fatalf("applyPollSQL must return the matched row so the caller can detect no-op polls:\n%s", applyPollSQL)
	}
}

func TestSaveModelSQLIsIdempotent(t *testing.T) {
	if !strings.Contains(saveModelSQL, "ON CONFLICT (gallery_item_id) DO NOTHING") {
		t.Fatalf("saveModelSQL lost its idempotent insert guard:\n%s", saveModelSQL)
	}
}
