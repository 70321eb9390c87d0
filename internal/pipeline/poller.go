package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"conceptforge/internal/domain"
	"conceptforge/internal/providers/meshy"
)

// Clock abstracts timers so poll loops are testable without wall-clock
// delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// PollerOptions tunes the poll loop.
type PollerOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
}

// statusClient is the narrow slice of the finalization API the poller needs.
type statusClient interface {
	TaskStatus(ctx context.Context, taskID string) (*meshy.TaskStatus, error)
}

// Poller drives finalization jobs from submission to a terminal state. One
// goroutine per watched task polls the external service at a fixed interval
// and folds each snapshot into the job repository. A failed poll request
// leaves the recorded state untouched and the next tick scheduled. A job
// that never reaches a terminal state within the timeout is failed with a
// timeout message. Stopping a loop releases its timer and never cancels the
// underlying external task.
type Poller struct {
	jobs     domain.JobRepository
	client   statusClient
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	// onSucceeded fires at most once per job, on the poll that made it
	// SUCCEEDED.
	onSucceeded func(ctx context.Context, job *domain.FinalizationJob, st *meshy.TaskStatus)

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller constructs a poller over the given job repository and status
// client.
func NewPoller(jobs domain.JobRepository, client statusClient, logger zerolog.Logger, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Poller{
		jobs:     jobs,
		client:   client,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// OnSucceeded registers the follow-up invoked when a watched job succeeds.
// Must be set before the first Watch.
func (p *Poller) OnSucceeded(fn func(ctx context.Context, job *domain.FinalizationJob, st *meshy.TaskStatus)) {
	p.onSucceeded = fn
}

// Watch starts a poll loop for taskID. Watching an already-watched task is a
// no-op. The loop stops when ctx is canceled, when the job reaches a
// terminal state, or when the timeout expires.
func (p *Poller) Watch(ctx context.Context, taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[taskID]; ok {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.active[taskID] = cancel
	p.wg.Add(1)
	go p.loop(loopCtx, taskID)
}

// Stop cancels the poll loop for taskID, if any. The external task keeps
// running; a later on-demand poll reconstructs its state.
func (p *Poller) Stop(taskID string) {
	p.mu.Lock()
	cancel, ok := p.active[taskID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every poll loop and waits for them to exit.
func (p *Poller) StopAll() {
	p.mu.Lock()
	for _, cancel := range p.active {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Watching reports whether a loop is running for taskID.
func (p *Poller) Watching(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[taskID]
	return ok
}

func (p *Poller) loop(ctx context.Context, taskID string) {
	defer p.wg.Done()
	defer p.remove(taskID)

	deadline := p.clock.Now().Add(p.timeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.interval):
		}

		if p.clock.Now().After(deadline) {
			msg := fmt.Sprintf("finalization timed out after %s", p.timeout)
			// Carry the recorded progress so the terminal snapshot
			// shows how far the task got before the deadline.
			progress := 0
			if job, err := p.jobs.GetJob(ctx, taskID); err == nil {
				progress = job.Progress
			}
			if _, _, err := p.jobs.ApplyPoll(ctx, taskID, domain.JobStatusFailed, progress, msg); err != nil {
				p.logger.Error().Err(err).Str("task_id", taskID).Msg("poller: record timeout failed")
			}
			p.logger.Warn().Str("task_id", taskID).Msg("poller: job timed out")
			return
		}

		st, err := p.client.TaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn().Err(err).Str("task_id", taskID).Msg("poller: transient poll error")
			continue
		}

		job, transitioned, err := p.jobs.ApplyPoll(ctx, taskID, normalizeStatus(st.Status), st.Progress, st.Error)
		if err != nil {
			p.logger.Error().Err(err).Str("task_id", taskID).Msg("poller: apply poll failed")
			return
		}
		if !job.Status.Terminal() {
			continue
		}
		if transitioned && job.Status == domain.JobStatusSucceeded && p.onSucceeded != nil {
			p.onSucceeded(ctx, job, st)
		}
		return
	}
}

func (p *Poller) remove(taskID string) {
	p.mu.Lock()
	if cancel, ok := p.active[taskID]; ok {
		cancel()
		delete(p.active, taskID)
	}
	p.mu.Unlock()
}

// normalizeStatus maps an upstream status string onto the job state machine.
// Meshy reports expired tasks with a distinct status; they are terminal
// failures here.
func normalizeStatus(s string) domain.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return domain.JobStatusPending
	case "IN_PROGRESS":
		return domain.JobStatusInProgress
	case "SUCCEEDED":
		return domain.JobStatusSucceeded
	case "FAILED", "EXPIRED", "CANCELED":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusInProgress
	}
}
