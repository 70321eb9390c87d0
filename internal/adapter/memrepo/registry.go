package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"conceptforge/internal/domain"
)

// Registry is an in-memory implementation of domain.Registry. A single mutex
// serializes all writes, which is what enforces the one-live-job and
// one-gallery-item-per-prototype rules under concurrent requests. It backs
// tests and deployments without a DATABASE_URL.
type Registry struct {
	mu         sync.Mutex
	seq        int
	images     map[string]*domain.ConceptImage
	prototypes map[string]*domain.Prototype
	items      map[string]*domain.GalleryItem
	jobs       map[string]*domain.FinalizationJob
	models     map[string]*domain.FinalModel
	order      map[string]int
}

func New() *Registry {
	return &Registry{
		images:     make(map[string]*domain.ConceptImage),
		prototypes: make(map[string]*domain.Prototype),
		items:      make(map[string]*domain.GalleryItem),
		jobs:       make(map[string]*domain.FinalizationJob),
		models:     make(map[string]*domain.FinalModel),
		order:      make(map[string]int),
	}
}

func (r *Registry) CreateImage(ctx context.Context, img *domain.ConceptImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img.ID == "" {
		return fmt.Errorf("%w: image id is required", domain.ErrValidation)
	}
	if img.ParentImageID != "" {
		if _, ok := r.images[img.ParentImageID]; !ok {
			return fmt.Errorf("%w: parent image %s does not exist", domain.ErrValidation, img.ParentImageID)
		}
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	cp := *img
	r.images[img.ID] = &cp
	r.track(img.ID)
	return nil
}

func (r *Registry) GetImage(ctx context.Context, id string) (*domain.ConceptImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: image %s", domain.ErrNotFound, id)
	}
	cp := *img
	return &cp, nil
}

func (r *Registry) ListImages(ctx context.Context, limit, offset int) ([]domain.ConceptImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ConceptImage
	for _, img := range r.images {
		out = append(out, *img)
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] > r.order[out[j].ID] })
	return page(out, limit, offset), nil
}

func (r *Registry) ListImagesByParent(ctx context.Context, parentID string) ([]domain.ConceptImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ConceptImage
	for _, img := range r.images {
		if img.ParentImageID != parentID {
			continue
		}
		out = append(out, *img)
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] < r.order[out[j].ID] })
	return out, nil
}

func (r *Registry) CreatePrototype(ctx context.Context, proto *domain.Prototype) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if proto.ID == "" {
		return fmt.Errorf("%w: prototype id is required", domain.ErrValidation)
	}
	if _, ok := r.images[proto.SourceImageID]; !ok {
		return fmt.Errorf("%w: source image %s does not exist", domain.ErrValidation, proto.SourceImageID)
	}
	if proto.CreatedAt.IsZero() {
		proto.CreatedAt = time.Now()
	}
	cp := *proto
	r.prototypes[proto.ID] = &cp
	r.track(proto.ID)
	return nil
}

func (r *Registry) GetPrototype(ctx context.Context, id string) (*domain.Prototype, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proto, ok := r.prototypes[id]
	if !ok {
		return nil, fmt.Errorf("%w: prototype %s", domain.ErrNotFound, id)
	}
	cp := *proto
	return &cp, nil
}

func (r *Registry) ListPrototypes(ctx context.Context, status domain.AssetStatus, limit, offset int) ([]domain.Prototype, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Prototype
	for _, proto := range r.prototypes {
		if status != "" && proto.Status != status {
			continue
		}
		out = append(out, *proto)
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] > r.order[out[j].ID] })
	return page(out, limit, offset), nil
}

func (r *Registry) CreateItem(ctx context.Context, item *domain.GalleryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		return fmt.Errorf("%w: gallery item id is required", domain.ErrValidation)
	}
	if _, ok := r.prototypes[item.PrototypeID]; !ok {
		return fmt.Errorf("%w: prototype %s does not exist", domain.ErrValidation, item.PrototypeID)
	}
	for _, existing := range r.items {
		if existing.PrototypeID == item.PrototypeID && existing.AssetType == item.AssetType {
			return fmt.Errorf("%w: prototype %s is already in the gallery", domain.ErrConflict, item.PrototypeID)
		}
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	cp := *item
	r.items[item.ID] = &cp
	r.track(item.ID)
	return nil
}

func (r *Registry) GetItem(ctx context.Context, id string) (*domain.GalleryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: gallery item %s", domain.ErrNotFound, id)
	}
	cp := *item
	return &cp, nil
}

func (r *Registry) ListItems(ctx context.Context, filter domain.GalleryFilter) ([]domain.GalleryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.GalleryItem
	for _, item := range r.items {
		if filter.AssetType != "" && item.AssetType != filter.AssetType {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return r.order[out[i].ID] > r.order[out[j].ID] })
	return page(out, filter.Limit, filter.Offset), nil
}

// DeleteItem removes the gallery record only; the underlying prototype and
// concept image stay retrievable.
func (r *Registry) DeleteItem(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: gallery item %s", domain.ErrNotFound, id)
	}
	delete(r.items, id)
	return nil
}

func (r *Registry) Stats(ctx context.Context) (*domain.GalleryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.GalleryStats{
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for _, item := range r.items {
		stats.TotalItems++
		stats.ByType[string(item.AssetType)]++
		stats.ByStatus[string(item.Status)]++
	}
	return stats, nil
}

func (r *Registry) CreateJob(ctx context.Context, job *domain.FinalizationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.TaskID == "" {
		return fmt.Errorf("%w: task id is required", domain.ErrValidation)
	}
	if _, ok := r.items[job.GalleryItemID]; !ok {
		return fmt.Errorf("%w: gallery item %s does not exist", domain.ErrValidation, job.GalleryItemID)
	}
	for _, existing := range r.jobs {
		if existing.GalleryItemID == job.GalleryItemID && !existing.Status.Terminal() {
			return fmt.Errorf("%w: gallery item %s already has a live finalization job", domain.ErrConflict, job.GalleryItemID)
		}
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	cp := *job
	r.jobs[job.TaskID] = &cp
	r.track(job.TaskID)
	return nil
}

func (r *Registry) GetJob(ctx context.Context, taskID string) (*domain.FinalizationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	cp := *job
	return &cp, nil
}

func (r *Registry) JobForItem(ctx context.Context, galleryItemID string) (*domain.FinalizationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.FinalizationJob
	for _, job := range r.jobs {
		if job.GalleryItemID != galleryItemID {
			continue
		}
		if latest == nil || r.order[job.TaskID] > r.order[latest.TaskID] {
			latest = job
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no finalization job for gallery item %s", domain.ErrNotFound, galleryItemID)
	}
	cp := *latest
	return &cp, nil
}

func (r *Registry) ApplyPoll(ctx context.Context, taskID string, status domain.JobStatus, progress int, errMsg string) (*domain.FinalizationJob, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[taskID]
	if !ok {
		return nil, false, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	terminal := job.Apply(status, progress, errMsg, time.Now())
	cp := *job
	return &cp, terminal, nil
}

func (r *Registry) SaveModel(ctx context.Context, model *domain.FinalModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if model.GalleryItemID == "" {
		return fmt.Errorf("%w: gallery item id is required", domain.ErrValidation)
	}
	if _, ok := r.models[model.GalleryItemID]; ok {
		return nil
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	cp := *model
	r.models[model.GalleryItemID] = &cp
	r.track("model:" + model.GalleryItemID)
	return nil
}

func (r *Registry) GetModel(ctx context.Context, galleryItemID string) (*domain.FinalModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	model, ok := r.models[galleryItemID]
	if !ok {
		return nil, fmt.Errorf("%w: final model for gallery item %s", domain.ErrNotFound, galleryItemID)
	}
	cp := *model
	return &cp, nil
}

func (r *Registry) ListModels(ctx context.Context, limit, offset int) ([]domain.FinalModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FinalModel
	for _, model := range r.models {
		out = append(out, *model)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.order["model:"+out[i].GalleryItemID] > r.order["model:"+out[j].GalleryItemID]
	})
	return page(out, limit, offset), nil
}

func (r *Registry) track(id string) {
	r.seq++
	r.order[id] = r.seq
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ domain.Registry = (*Registry)(nil)
