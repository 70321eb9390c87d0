package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"conceptforge/internal/domain"
	"conceptforge/internal/namegen"
	"conceptforge/internal/providers/image"
	"conceptforge/internal/providers/mesh"
	"conceptforge/internal/providers/meshy"
	"conceptforge/internal/storage"
)

// ImageClient generates and refines 2D concept images.
type ImageClient interface {
	Generate(ctx context.Context, req image.GenerateRequest) (*image.Result, error)
}

// MeshClient converts a concept image into a low-fidelity prototype mesh.
type MeshClient interface {
	GeneratePrototype(ctx context.Context, imageURL string) (*mesh.PrototypeResult, error)
}

// FinalizeClient wraps the asynchronous finalization service.
type FinalizeClient interface {
	CreateImageTo3DTask(ctx context.Context, imageURL, name string) (string, error)
	TaskStatus(ctx context.Context, taskID string) (*meshy.TaskStatus, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Coordinator.
type Options struct {
	StorageBaseURL string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	Clock          Clock
	Logger         zerolog.Logger
}

// Coordinator ties the registry, the external clients and the poller
// together. Every stage-advance operation validates its prerequisite asset
// before touching an external service, and the registry is only written once
// the external call has produced a complete artifact, so a failed call never
// leaves a partial record behind.
type Coordinator struct {
	registry domain.Registry
	images   ImageClient
	mesh     MeshClient
	finalize FinalizeClient
	store    *storage.FileStore
	poller   *Poller
	logger   zerolog.Logger
	baseCtx  context.Context
	baseURL  string
}

// NewCoordinator builds a coordinator. Poll loops run until ctx is canceled.
func NewCoordinator(ctx context.Context, registry domain.Registry, images ImageClient, meshClient MeshClient, finalize FinalizeClient, store *storage.FileStore, opts Options) *Coordinator {
	c := &Coordinator{
		registry: registry,
		images:   images,
		mesh:     meshClient,
		finalize: finalize,
		store:    store,
		logger:   opts.Logger,
		baseCtx:  ctx,
		baseURL:  strings.TrimRight(opts.StorageBaseURL, "/"),
	}
	c.poller = NewPoller(registry, finalize, opts.Logger, PollerOptions{
		Interval: opts.PollInterval,
		Timeout:  opts.PollTimeout,
		Clock:    opts.Clock,
	})
	c.poller.OnSucceeded(func(loopCtx context.Context, job *domain.FinalizationJob, st *meshy.TaskStatus) {
		if err := c.materialize(loopCtx, job, st); err != nil {
			c.logger.Error().Err(err).Str("task_id", job.TaskID).Msg("coordinator: model materialization failed")
		}
	})
	return c
}

// Poller exposes the poll state machine, mainly for shutdown.
func (c *Coordinator) Poller() *Poller {
	return c.poller
}

// GenerateConcept produces a new 2D concept image from a prompt.
func (c *Coordinator) GenerateConcept(ctx context.Context, prompt, refinementNotes string) (*domain.ConceptImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	result, err := c.images.Generate(ctx, image.GenerateRequest{Prompt: prompt, RefinementNotes: refinementNotes})
	if err != nil {
		return nil, fmt.Errorf("generate concept: %w", err)
	}
	img := &domain.ConceptImage{
		ID:       uuid.NewString(),
		Prompt:   prompt,
		ImageURL: result.URL,
		Name:     namegen.Concept(prompt),
	}
	if err := c.registry.CreateImage(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// RefineConcept produces a new concept image derived from an existing one.
// The original image is never mutated; lineage is tracked via ParentImageID.
func (c *Coordinator) RefineConcept(ctx context.Context, imageID, refinementText string) (*domain.ConceptImage, error) {
	refinementText = strings.TrimSpace(refinementText)
	if refinementText == "" {
		return nil, fmt.Errorf("%w: refinement text is required", domain.ErrValidation)
	}
	parent, err := c.registry.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	result, err := c.images.Generate(ctx, image.GenerateRequest{Prompt: parent.Prompt, RefinementNotes: refinementText})
	if err != nil {
		return nil, fmt.Errorf("refine concept: %w", err)
	}
	refined := &domain.ConceptImage{
		ID:              uuid.NewString(),
		Prompt:          parent.Prompt,
		RefinementNotes: refinementText,
		ParentImageID:   parent.ID,
		ImageURL:        result.URL,
		Name:            namegen.Refined(parent.Name),
	}
	if err := c.registry.CreateImage(ctx, refined); err != nil {
		return nil, err
	}
	return refined, nil
}

// GetConcept returns one concept image.
func (c *Coordinator) GetConcept(ctx context.Context, imageID string) (*domain.ConceptImage, error) {
	return c.registry.GetImage(ctx, imageID)
}

const maxBatchRefinements = 5

// RefinementFailure records one variant that could not be produced during a
// batch refinement.
type RefinementFailure struct {
	RefinementText string
	Err            error
}

// RefineConceptBatch produces several refinement variants of one image.
// Variants fail independently; a failed variant never aborts the rest of the
// batch.
func (c *Coordinator) RefineConceptBatch(ctx context.Context, imageID string, refinementTexts []string) ([]domain.ConceptImage, []RefinementFailure, error) {
	if len(refinementTexts) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one refinement text is required", domain.ErrValidation)
	}
	if len(refinementTexts) > maxBatchRefinements {
		return nil, nil, fmt.Errorf("%w: at most %d variants per batch", domain.ErrValidation, maxBatchRefinements)
	}
	var refined []domain.ConceptImage
	var failed []RefinementFailure
	for _, text := range refinementTexts {
		img, err := c.RefineConcept(ctx, imageID, text)
		if err != nil {
			failed = append(failed, RefinementFailure{RefinementText: text, Err: err})
			continue
		}
		refined = append(refined, *img)
	}
	return refined, failed, nil
}

// ConceptHistory is the full refinement lineage of a concept image.
type ConceptHistory struct {
	RootID    string
	CurrentID string
	Images    []domain.ConceptImage
}

// History returns every version in the refinement lineage containing
// imageID: the walk climbs parent references to the original, then collects
// the root and all its descendants in creation order.
func (c *Coordinator) History(ctx context.Context, imageID string) (*ConceptHistory, error) {
	current, err := c.registry.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	root := current
	visited := map[string]bool{root.ID: true}
	for root.ParentImageID != "" && !visited[root.ParentImageID] {
		parent, err := c.registry.GetImage(ctx, root.ParentImageID)
		if err != nil {
			// Dangling parent reference: treat the oldest reachable
			// version as the root.
			break
		}
		root = parent
		visited[root.ID] = true
	}

	history := &ConceptHistory{RootID: root.ID, CurrentID: current.ID}
	if err := c.collectLineage(ctx, root, map[string]bool{}, history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Coordinator) collectLineage(ctx context.Context, img *domain.ConceptImage, seen map[string]bool, history *ConceptHistory) error {
	if seen[img.ID] {
		return nil
	}
	seen[img.ID] = true
	history.Images = append(history.Images, *img)
	children, err := c.registry.ListImagesByParent(ctx, img.ID)
	if err != nil {
		return err
	}
	for i := range children {
		if err := c.collectLineage(ctx, &children[i], seen, history); err != nil {
			return err
		}
	}
	return nil
}

// ListConcepts returns concept images, most recent first.
func (c *Coordinator) ListConcepts(ctx context.Context, limit, offset int) ([]domain.ConceptImage, error) {
	return c.registry.ListImages(ctx, limit, offset)
}

// GeneratePrototype converts a concept image into a prototype mesh.
func (c *Coordinator) GeneratePrototype(ctx context.Context, imageID string) (*domain.Prototype, error) {
	img, err := c.registry.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	result, err := c.mesh.GeneratePrototype(ctx, img.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("generate prototype: %w", err)
	}
	status := domain.AssetStatusCompleted
	if result.ObjURL == "" {
		// Geometry still being written by the mesh service.
		status = domain.AssetStatusProcessing
	}
	proto := &domain.Prototype{
		ID:            uuid.NewString(),
		SourceImageID: img.ID,
		Name:          namegen.Prototype(img.Name),
		GifURL:        result.GifURL,
		ObjURL:        result.ObjURL,
		Status:        status,
	}
	if err := c.registry.CreatePrototype(ctx, proto); err != nil {
		return nil, err
	}
	return proto, nil
}

// GetPrototype returns one prototype.
func (c *Coordinator) GetPrototype(ctx context.Context, prototypeID string) (*domain.Prototype, error) {
	return c.registry.GetPrototype(ctx, prototypeID)
}

// ListPrototypes returns prototypes, optionally filtered by status.
func (c *Coordinator) ListPrototypes(ctx context.Context, status domain.AssetStatus, limit, offset int) ([]domain.Prototype, error) {
	return c.registry.ListPrototypes(ctx, status, limit, offset)
}

// SaveToGallery promotes a prototype into the gallery, making it eligible
// for finalization. Saving the same prototype twice is a conflict.
func (c *Coordinator) SaveToGallery(ctx context.Context, prototypeID, name string) (*domain.GalleryItem, error) {
	proto, err := c.registry.GetPrototype(ctx, prototypeID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = proto.Name
	}
	item := &domain.GalleryItem{
		ID:          uuid.NewString(),
		PrototypeID: proto.ID,
		Name:        name,
		AssetType:   domain.AssetTypePrototype,
		Status:      domain.AssetStatusCompleted,
		GifURL:      proto.GifURL,
	}
	if err := c.registry.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetGalleryItem returns one gallery item.
func (c *Coordinator) GetGalleryItem(ctx context.Context, itemID string) (*domain.GalleryItem, error) {
	return c.registry.GetItem(ctx, itemID)
}

// ListGallery returns gallery items matching the filter.
func (c *Coordinator) ListGallery(ctx context.Context, filter domain.GalleryFilter) ([]domain.GalleryItem, error) {
	return c.registry.ListItems(ctx, filter)
}

// GalleryStats summarizes gallery contents.
func (c *Coordinator) GalleryStats(ctx context.Context) (*domain.GalleryStats, error) {
	return c.registry.Stats(ctx)
}

// DeleteGalleryItem removes the gallery record only; the prototype and
// concept image it was derived from stay retrievable.
func (c *Coordinator) DeleteGalleryItem(ctx context.Context, itemID string) error {
	return c.registry.DeleteItem(ctx, itemID)
}

// StartFinalization submits a gallery item to the external finalization
// service and begins polling the resulting task. At most one live job may
// exist per gallery item.
func (c *Coordinator) StartFinalization(ctx context.Context, galleryItemID string) (*domain.FinalizationJob, error) {
	item, err := c.registry.GetItem(ctx, galleryItemID)
	if err != nil {
		return nil, err
	}
	if item.AssetType != domain.AssetTypePrototype || item.Status != domain.AssetStatusCompleted {
		return nil, fmt.Errorf("%w: gallery item %s is not a completed prototype", domain.ErrValidation, galleryItemID)
	}
	if existing, err := c.registry.JobForItem(ctx, galleryItemID); err == nil && !existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: gallery item %s already has a live finalization job", domain.ErrConflict, galleryItemID)
	}

	// The finalization service works from the source 2D image, not the
	// prototype mesh.
	proto, err := c.registry.GetPrototype(ctx, item.PrototypeID)
	if err != nil {
		return nil, err
	}
	img, err := c.registry.GetImage(ctx, proto.SourceImageID)
	if err != nil {
		return nil, err
	}

	taskID, err := c.finalize.CreateImageTo3DTask(ctx, img.ImageURL, namegen.Final(item.Name))
	if err != nil {
		return nil, fmt.Errorf("start finalization: %w", err)
	}
	job := &domain.FinalizationJob{
		TaskID:        taskID,
		GalleryItemID: item.ID,
		Status:        domain.JobStatusPending,
		Progress:      0,
	}
	if err := c.registry.CreateJob(ctx, job); err != nil {
		c.logger.Warn().Str("task_id", taskID).Str("gallery_item_id", item.ID).Msg("coordinator: abandoning external task after job create failure")
		return nil, err
	}
	c.poller.Watch(c.baseCtx, taskID)
	return job, nil
}

// PollFinalization returns the current job snapshot, refreshing it from the
// external service when the job is still live. A terminal job is answered
// from the registry without a new submission or upstream call. A failed
// upstream poll returns the last recorded snapshot unchanged.
func (c *Coordinator) PollFinalization(ctx context.Context, taskID string) (*domain.FinalizationJob, error) {
	job, err := c.registry.GetJob(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}
	st, err := c.finalize.TaskStatus(ctx, taskID)
	if err != nil {
		c.logger.Warn().Err(err).Str("task_id", taskID).Msg("coordinator: transient poll error")
		return job, nil
	}
	updated, transitioned, err := c.registry.ApplyPoll(ctx, taskID, normalizeStatus(st.Status), st.Progress, st.Error)
	if err != nil {
		return nil, err
	}
	if transitioned && updated.Status == domain.JobStatusSucceeded {
		if err := c.materialize(ctx, updated, st); err != nil {
			c.logger.Error().Err(err).Str("task_id", taskID).Msg("coordinator: model materialization failed")
		}
	}
	return updated, nil
}

// FinalModel returns the materialized model for a gallery item. When the job
// succeeded but a prior materialization attempt failed, the fetch is retried
// here; the job's terminal status is never affected.
func (c *Coordinator) FinalModel(ctx context.Context, galleryItemID string) (*domain.FinalModel, error) {
	model, err := c.registry.GetModel(ctx, galleryItemID)
	if err == nil {
		return model, nil
	}
	job, jobErr := c.registry.JobForItem(ctx, galleryItemID)
	if jobErr != nil {
		return nil, err
	}
	switch job.Status {
	case domain.JobStatusSucceeded:
		st, stErr := c.finalize.TaskStatus(ctx, job.TaskID)
		if stErr != nil {
			return nil, fmt.Errorf("final model fetch: %w", stErr)
		}
		if err := c.materialize(ctx, job, st); err != nil {
			return nil, fmt.Errorf("final model fetch: %w", err)
		}
		return c.registry.GetModel(ctx, galleryItemID)
	case domain.JobStatusFailed:
		return nil, fmt.Errorf("%w: %s", domain.ErrJobFailed, job.ErrorMessage)
	default:
		return nil, err
	}
}

// ListFinalModels returns materialized models, most recent first.
func (c *Coordinator) ListFinalModels(ctx context.Context, limit, offset int) ([]domain.FinalModel, error) {
	return c.registry.ListModels(ctx, limit, offset)
}

// GalleryArchive bundles the stored model files for a gallery item into a
// zip archive.
func (c *Coordinator) GalleryArchive(ctx context.Context, galleryItemID string) ([]byte, *domain.FinalModel, error) {
	model, err := c.registry.GetModel(ctx, galleryItemID)
	if err != nil {
		return nil, nil, err
	}
	files := c.readModelFiles(ctx, model)
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no stored files for gallery item %s", domain.ErrNotFound, galleryItemID)
	}
	archive, err := bundleFiles(files)
	if err != nil {
		return nil, nil, err
	}
	return archive, model, nil
}

// materialize performs the one follow-up fetch after a job succeeds:
// download the produced files, persist them, and record the FinalModel.
func (c *Coordinator) materialize(ctx context.Context, job *domain.FinalizationJob, st *meshy.TaskStatus) error {
	model := &domain.FinalModel{GalleryItemID: job.GalleryItemID}

	type download struct {
		url  string
		key  string
		dest *string
	}
	downloads := []download{
		{st.ModelURLs.Obj, c.modelKey(job.GalleryItemID, "model.obj"), &model.ObjURL},
		{st.ModelURLs.Fbx, c.modelKey(job.GalleryItemID, "model.fbx"), &model.FbxURL},
	}
	if len(st.TextureURLs) > 0 {
		downloads = append(downloads, download{st.TextureURLs[0], c.modelKey(job.GalleryItemID, "texture.png"), &model.TextureURL})
	}

	stored := 0
	for _, d := range downloads {
		if d.url == "" {
			continue
		}
		data, err := c.finalize.Download(ctx, d.url)
		if err != nil {
			return fmt.Errorf("download %s: %w", d.key, err)
		}
		key, err := c.store.Write(ctx, d.key, data)
		if err != nil {
			return err
		}
		*d.dest = c.publicURL(key)
		stored++
	}
	if stored == 0 {
		return fmt.Errorf("%w: task %s reported no model files", domain.ErrExternalService, job.TaskID)
	}
	return c.registry.SaveModel(ctx, model)
}

func (c *Coordinator) readModelFiles(ctx context.Context, model *domain.FinalModel) []modelFile {
	var files []modelFile
	for _, entry := range []struct {
		url  string
		name string
	}{
		{model.ObjURL, "model.obj"},
		{model.FbxURL, "model.fbx"},
		{model.TextureURL, "texture.png"},
	} {
		if entry.url == "" {
			continue
		}
		data, err := c.store.Read(ctx, c.modelKey(model.GalleryItemID, entry.name))
		if err != nil {
			c.logger.Warn().Err(err).Str("gallery_item_id", model.GalleryItemID).Msg("coordinator: stored model file missing")
			continue
		}
		files = append(files, modelFile{name: entry.name, data: data})
	}
	return files
}

func (c *Coordinator) modelKey(galleryItemID, filename string) string {
	return fmt.Sprintf("final/%s/%s", galleryItemID, filename)
}

func (c *Coordinator) publicURL(key string) string {
	if c.baseURL == "" {
		return key
	}
	return c.baseURL + "/" + key
}
