package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"conceptforge/internal/adapter/memrepo"
	"conceptforge/internal/domain"
	"conceptforge/internal/providers/image"
	"conceptforge/internal/providers/mesh"
	"conceptforge/internal/providers/meshy"
	"conceptforge/internal/storage"
)

type fakeImageClient struct {
	mu     sync.Mutex
	calls  int
	err    error
	failOn int // 1-based call number that fails once; 0 disables
}

func (f *fakeImageClient) Generate(ctx context.Context, req image.GenerateRequest) (*image.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	if f.failOn == f.calls {
		return nil, fmt.Errorf("%w: upstream 500", domain.ErrExternalService)
	}
	return &image.Result{URL: fmt.Sprintf("http://cdn/images/%d.png", f.calls)}, nil
}

type fakeMeshClient struct {
	result mesh.PrototypeResult
	err    error
}

func (f *fakeMeshClient) GeneratePrototype(ctx context.Context, imageURL string) (*mesh.PrototypeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.result, nil
}

type fakeFinalizeClient struct {
	mu        sync.Mutex
	tasks     int
	status    meshy.TaskStatus
	statusErr error
	downloads map[string][]byte
}

func (f *fakeFinalizeClient) CreateImageTo3DTask(ctx context.Context, imageURL, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks++
	return fmt.Sprintf("task-%d", f.tasks), nil
}

func (f *fakeFinalizeClient) TaskStatus(ctx context.Context, taskID string) (*meshy.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st := f.status
	return &st, nil
}

func (f *fakeFinalizeClient) Download(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.downloads[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%w: no fixture for %s", domain.ErrExternalService, url)
}

func (f *fakeFinalizeClient) setStatus(st meshy.TaskStatus) {
	f.mu.Lock()
	f.status = st
	f.mu.Unlock()
}

type fixture struct {
	coordinator *Coordinator
	registry    *memrepo.Registry
	images      *fakeImageClient
	meshc       *fakeMeshClient
	finalize    *fakeFinalizeClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	registry := memrepo.New()
	images := &fakeImageClient{}
	meshc := &fakeMeshClient{result: mesh.PrototypeResult{ObjURL: "http://cdn/proto.obj", GifURL: "http://cdn/proto.gif"}}
	finalize := &fakeFinalizeClient{
		status: meshy.TaskStatus{Status: "PENDING", Progress: 0},
		downloads: map[string][]byte{
			"http://cdn/final/model.obj":   []byte("obj-bytes"),
			"http://cdn/final/model.fbx":   []byte("fbx-bytes"),
			"http://cdn/final/texture.png": []byte("texture-bytes"),
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := NewCoordinator(ctx, registry, images, meshc, finalize, store, Options{
		StorageBaseURL: "http://localhost:8080/static",
		PollInterval:   time.Hour, // background loop stays idle; tests poll on demand
		PollTimeout:    24 * time.Hour,
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(c.Poller().StopAll)
	return &fixture{coordinator: c, registry: registry, images: images, meshc: meshc, finalize: finalize}
}

// savedItem walks a fixture through prompt, prototype and gallery save.
func savedItem(t *testing.T, f *fixture) *domain.GalleryItem {
	t.Helper()
	ctx := context.Background()
	img, err := f.coordinator.GenerateConcept(ctx, "a walnut side table", "")
	if err != nil {
		t.Fatalf("GenerateConcept: %v", err)
	}
	proto, err := f.coordinator.GeneratePrototype(ctx, img.ID)
	if err != nil {
		t.Fatalf("GeneratePrototype: %v", err)
	}
	item, err := f.coordinator.SaveToGallery(ctx, proto.ID, "walnut side table")
	if err != nil {
		t.Fatalf("SaveToGallery: %v", err)
	}
	return item
}

func TestGenerateConceptValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.coordinator.GenerateConcept(context.Background(), "   ", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for blank prompt", err)
	}
	if f.images.calls != 0 {
		t.Fatalf("image backend called %d times for an invalid prompt", f.images.calls)
	}
}

func TestGenerateConceptExternalFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.images.err = fmt.Errorf("%w: upstream 500", domain.ErrExternalService)

	_, err := f.coordinator.GenerateConcept(context.Background(), "a lamp", "")
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
	images, _ := f.coordinator.ListConcepts(context.Background(), 10, 0)
	if len(images) != 0 {
		t.Fatalf("len = %d, want no record after failed generation", len(images))
	}
}

func TestRefineConceptKeepsOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.coordinator.GenerateConcept(ctx, "a lamp", "")
	if err != nil {
		t.Fatalf("GenerateConcept: %v", err)
	}
	refined, err := f.coordinator.RefineConcept(ctx, original.ID, "make it brass")
	if err != nil {
		t.Fatalf("RefineConcept: %v", err)
	}

	if refined.ID == original.ID {
		t.Fatalf("refinement reused the original id")
	}
	if refined.ParentImageID != original.ID {
		t.Fatalf("parent = %q, want %q", refined.ParentImageID, original.ID)
	}
	if refined.Prompt != original.Prompt {
		t.Fatalf("prompt = %q, want inherited %q", refined.Prompt, original.Prompt)
	}
	if refined.RefinementNotes != "make it brass" {
		t.Fatalf("refinement notes = %q", refined.RefinementNotes)
	}

	kept, err := f.coordinator.GetConcept(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetConcept original: %v", err)
	}
	if kept.ImageURL != original.ImageURL {
		t.Fatalf("original image mutated by refinement")
	}
}

func TestRefineConceptValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img, _ := f.coordinator.GenerateConcept(ctx, "a lamp", "")

	if _, err := f.coordinator.RefineConcept(ctx, img.ID, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank refinement: err = %v, want ErrValidation", err)
	}
	if _, err := f.coordinator.RefineConcept(ctx, "missing", "more detail"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing image: err = %v, want ErrNotFound", err)
	}
}

func TestRefineConceptBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img, _ := f.coordinator.GenerateConcept(ctx, "a lamp", "")

	// The second variant hits an upstream failure; the rest of the batch
	// still completes.
	f.images.failOn = 3
	refined, failed, err := f.coordinator.RefineConceptBatch(ctx, img.ID, []string{"brass", "ceramic", "walnut"})
	if err != nil {
		t.Fatalf("RefineConceptBatch: %v", err)
	}
	if len(refined) != 2 {
		t.Fatalf("successful = %d, want 2", len(refined))
	}
	if len(failed) != 1 || failed[0].RefinementText != "ceramic" {
		t.Fatalf("failed = %+v, want the ceramic variant", failed)
	}
	if !errors.Is(failed[0].Err, domain.ErrExternalService) {
		t.Fatalf("failure err = %v, want ErrExternalService", failed[0].Err)
	}
	for _, variant := range refined {
		if variant.ParentImageID != img.ID {
			t.Fatalf("variant parent = %q, want %q", variant.ParentImageID, img.ID)
		}
	}
}

func TestRefineConceptBatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img, _ := f.coordinator.GenerateConcept(ctx, "a lamp", "")

	if _, _, err := f.coordinator.RefineConceptBatch(ctx, img.ID, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty batch: err = %v, want ErrValidation", err)
	}
	texts := []string{"a", "b", "c", "d", "e", "f"}
	if _, _, err := f.coordinator.RefineConceptBatch(ctx, img.ID, texts); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("oversized batch: err = %v, want ErrValidation", err)
	}
	if f.images.calls != 1 {
		t.Fatalf("image backend called %d times, want only the initial generation", f.images.calls)
	}
}

func TestHistoryWalksLineage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, _ := f.coordinator.GenerateConcept(ctx, "a lamp", "")
	first, err := f.coordinator.RefineConcept(ctx, root.ID, "brass")
	if err != nil {
		t.Fatalf("RefineConcept: %v", err)
	}
	second, err := f.coordinator.RefineConcept(ctx, root.ID, "ceramic")
	if err != nil {
		t.Fatalf("RefineConcept: %v", err)
	}
	grandchild, err := f.coordinator.RefineConcept(ctx, first.ID, "brushed brass")
	if err != nil {
		t.Fatalf("RefineConcept: %v", err)
	}

	// Any version in the chain resolves the same lineage.
	history, err := f.coordinator.History(ctx, grandchild.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history.RootID != root.ID {
		t.Fatalf("root = %q, want %q", history.RootID, root.ID)
	}
	if history.CurrentID != grandchild.ID {
		t.Fatalf("current = %q, want %q", history.CurrentID, grandchild.ID)
	}
	wantOrder := []string{root.ID, first.ID, grandchild.ID, second.ID}
	if len(history.Images) != len(wantOrder) {
		t.Fatalf("versions = %d, want %d", len(history.Images), len(wantOrder))
	}
	for i, want := range wantOrder {
		if history.Images[i].ID != want {
			t.Fatalf("history[%d] = %q, want %q", i, history.Images[i].ID, want)
		}
	}

	if _, err := f.coordinator.History(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing image: err = %v, want ErrNotFound", err)
	}
}

func TestGeneratePrototypeProcessingWhenGeometryPending(t *testing.T) {
	f := newFixture(t)
	f.meshc.result = mesh.PrototypeResult{GifURL: "http://cdn/proto.gif"}
	ctx := context.Background()

	img, _ := f.coordinator.GenerateConcept(ctx, "a lamp", "")
	proto, err := f.coordinator.GeneratePrototype(ctx, img.ID)
	if err != nil {
		t.Fatalf("GeneratePrototype: %v", err)
	}
	if proto.Status != domain.AssetStatusProcessing {
		t.Fatalf("status = %q, want processing without geometry", proto.Status)
	}
}

func TestSaveToGalleryTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := savedItem(t, f)

	if _, err := f.coordinator.SaveToGallery(ctx, item.PrototypeID, "again"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict on duplicate save", err)
	}
}

func TestDeleteGalleryItemKeepsUpstreamAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := savedItem(t, f)

	if err := f.coordinator.DeleteGalleryItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteGalleryItem: %v", err)
	}
	if _, err := f.coordinator.GetGalleryItem(ctx, item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("item still present after delete: %v", err)
	}
	if _, err := f.coordinator.GetPrototype(ctx, item.PrototypeID); err != nil {
		t.Fatalf("prototype lost by gallery delete: %v", err)
	}
	if err := f.coordinator.DeleteGalleryItem(ctx, item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestStartFinalizationRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := savedItem(t, f)

	job, err := f.coordinator.StartFinalization(ctx, item.ID)
	if err != nil {
		t.Fatalf("StartFinalization: %v", err)
	}
	if job.Status != domain.JobStatusPending {
		t.Fatalf("status = %q, want PENDING", job.Status)
	}
	if job.GalleryItemID != item.ID {
		t.Fatalf("gallery_item_id = %q, want %q", job.GalleryItemID, item.ID)
	}

	if _, err := f.coordinator.StartFinalization(ctx, item.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second start: err = %v, want ErrConflict while job is live", err)
	}
	if _, err := f.coordinator.StartFinalization(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing item: err = %v, want ErrNotFound", err)
	}
}

func TestPollFinalizationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := savedItem(t, f)

	job, err := f.coordinator.StartFinalization(ctx, item.ID)
	if err != nil {
		t.Fatalf("StartFinalization: %v", err)
	}

	f.finalize.setStatus(meshy.TaskStatus{Status: "IN_PROGRESS", Progress: 40})
	snap, err := f.coordinator.PollFinalization(ctx, job.TaskID)
	if err != nil {
		t.Fatalf("PollFinalization: %v", err)
	}
	if snap.Status != domain.JobStatusInProgress || snap.Progress != 40 {
		t.Fatalf("snapshot = %q/%d, want IN_PROGRESS/40", snap.Status, snap.Progress)
	}

	// Upstream hiccup: last recorded state answers the poll.
	f.finalize.mu.Lock()
	f.finalize.statusErr = errors.New("connection reset")
	f.finalize.mu.Unlock()
	snap, err = f.coordinator.PollFinalization(ctx, job.TaskID)
	if err != nil {
		t.Fatalf("PollFinalization during outage: %v", err)
	}
	if snap.Status != domain.JobStatusInProgress || snap.Progress != 40 {
		t.Fatalf("outage snapshot = %q/%d, want unchanged IN_PROGRESS/40", snap.Status, snap.Progress)
	}
	f.finalize.mu.Lock()
	f.finalize.statusErr = nil
	f.finalize.mu.Unlock()

	f.finalize.setStatus(meshy.TaskStatus{
		Status:      "SUCCEEDED",
		Progress:    100,
		ModelURLs:   meshy.ModelURLs{Obj: "http://cdn/final/model.obj", Fbx: "http://cdn/final/model.fbx"},
		TextureURLs: []string{"http://cdn/final/texture.png"},
	})
	snap, err = f.coordinator.PollFinalization(ctx, job.TaskID)
	if err != nil {
		t.Fatalf("PollFinalization success: %v", err)
	}
	if snap.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED", snap.Status)
	}

	model, err := f.coordinator.FinalModel(ctx, item.ID)
	if err != nil {
		t.Fatalf("FinalModel: %v", err)
	}
	wantObj := "http://localhost:8080/static/final/" + item.ID + "/model.obj"
	if model.ObjURL != wantObj {
		t.Fatalf("obj url = %q, want %q", model.ObjURL, wantObj)
	}
	if model.FbxURL == "" || model.TextureURL == "" {
		t.Fatalf("model urls incomplete: %+v", model)
	}

	// Polling a terminal job answers from the registry without resubmitting.
	f.finalize.setStatus(meshy.TaskStatus{Status: "FAILED", Progress: 0, Error: "late failure"})
	snap, err = f.coordinator.PollFinalization(ctx, job.TaskID)
	if err != nil {
		t.Fatalf("PollFinalization terminal: %v", err)
	}
	if snap.Status != domain.JobStatusSucceeded {
		t.Fatalf("terminal job overwritten: status = %q", snap.Status)
	}

	archive, _, err := f.coordinator.GalleryArchive(ctx, item.ID)
	if err != nil {
		t.Fatalf("GalleryArchive: %v", err)
	}
	if len(archive) == 0 {
		t.Fatalf("empty archive")
	}

	models, err := f.coordinator.ListFinalModels(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListFinalModels: %v", err)
	}
	if len(models) != 1 || models[0].GalleryItemID != item.ID {
		t.Fatalf("models = %+v, want the materialized model", models)
	}
}

func TestFinalModelOfFailedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := savedItem(t, f)

	job, err := f.coordinator.StartFinalization(ctx, item.ID)
	if err != nil {
		t.Fatalf("StartFinalization: %v", err)
	}
	f.finalize.setStatus(meshy.TaskStatus{Status: "FAILED", Error: "input image rejected"})
	if _, err := f.coordinator.PollFinalization(ctx, job.TaskID); err != nil {
		t.Fatalf("PollFinalization: %v", err)
	}

	_, err = f.coordinator.FinalModel(ctx, item.ID)
	if !errors.Is(err, domain.ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", err)
	}

	// A terminal failure releases the one-live-job slot.
	if _, err := f.coordinator.StartFinalization(ctx, item.ID); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
}

func TestFinalModelRetriesMaterialization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := savedItem(t, f)

	job, err := f.coordinator.StartFinalization(ctx, item.ID)
	if err != nil {
		t.Fatalf("StartFinalization: %v", err)
	}

	// Success snapshot pointing at a file the CDN does not serve yet: the
	// job terminates but no model is recorded.
	f.finalize.setStatus(meshy.TaskStatus{
		Status:    "SUCCEEDED",
		Progress:  100,
		ModelURLs: meshy.ModelURLs{Obj: "http://cdn/final/missing.obj"},
	})
	if _, err := f.coordinator.PollFinalization(ctx, job.TaskID); err != nil {
		t.Fatalf("PollFinalization: %v", err)
	}
	if _, err := f.coordinator.FinalModel(ctx, item.ID); err == nil {
		t.Fatalf("expected materialization to keep failing while the file is missing")
	}

	// The file appears; the next fetch retries the download and records the
	// model without touching the job's terminal status.
	f.finalize.setStatus(meshy.TaskStatus{
		Status:    "SUCCEEDED",
		Progress:  100,
		ModelURLs: meshy.ModelURLs{Obj: "http://cdn/final/model.obj"},
	})
	model, err := f.coordinator.FinalModel(ctx, item.ID)
	if err != nil {
		t.Fatalf("FinalModel retry: %v", err)
	}
	if model.ObjURL == "" {
		t.Fatalf("model obj url empty after retry")
	}
	got, err := f.coordinator.PollFinalization(ctx, job.TaskID)
	if err != nil {
		t.Fatalf("PollFinalization after retry: %v", err)
	}
	if got.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED preserved", got.Status)
	}
}
