package domain

import "context"

// ImageRepository persists 2D concept images. ListImagesByParent returns the
// direct refinements of an image, oldest first, so lineage walks visit
// versions in creation order.
type ImageRepository interface {
	CreateImage(ctx context.Context, img *ConceptImage) error
	GetImage(ctx context.Context, id string) (*ConceptImage, error)
	ListImages(ctx context.Context, limit, offset int) ([]ConceptImage, error)
	ListImagesByParent(ctx context.Context, parentID string) ([]ConceptImage, error)
}

// PrototypeRepository persists 3D prototypes. CreatePrototype fails with
// ErrValidation when the source image reference does not resolve.
type PrototypeRepository interface {
	CreatePrototype(ctx context.Context, proto *Prototype) error
	GetPrototype(ctx context.Context, id string) (*Prototype, error)
	ListPrototypes(ctx context.Context, status AssetStatus, limit, offset int) ([]Prototype, error)
}

// GalleryFilter narrows gallery listings; zero values match everything.
type GalleryFilter struct {
	AssetType AssetType
	Status    AssetStatus
	Limit     int
	Offset    int
}

// GalleryRepository persists curated gallery items. CreateItem fails with
// ErrConflict when the prototype already has a gallery item of the same
// asset type, and with ErrValidation when the prototype reference does not
// resolve. DeleteItem of an absent id returns ErrNotFound.
type GalleryRepository interface {
	CreateItem(ctx context.Context, item *GalleryItem) error
	GetItem(ctx context.Context, id string) (*GalleryItem, error)
	ListItems(ctx context.Context, filter GalleryFilter) ([]GalleryItem, error)
	DeleteItem(ctx context.Context, id string) error
	Stats(ctx context.Context) (*GalleryStats, error)
}

// JobRepository persists finalization jobs. CreateJob fails with ErrConflict
// when a non-terminal job already exists for the gallery item. ApplyPoll
// folds a polled snapshot into the stored job under the repository's write
// lock and reports whether the job reached a terminal state by this call.
type JobRepository interface {
	CreateJob(ctx context.Context, job *FinalizationJob) error
	GetJob(ctx context.Context, taskID string) (*FinalizationJob, error)
	JobForItem(ctx context.Context, galleryItemID string) (*FinalizationJob, error)
	ApplyPoll(ctx context.Context, taskID string, status JobStatus, progress int, errMsg string) (*FinalizationJob, bool, error)
}

// ModelRepository persists final models. SaveModel is idempotent so the
// materialization fetch can be retried after a partial failure.
type ModelRepository interface {
	SaveModel(ctx context.Context, model *FinalModel) error
	GetModel(ctx context.Context, galleryItemID string) (*FinalModel, error)
	ListModels(ctx context.Context, limit, offset int) ([]FinalModel, error)
}

// Registry aggregates all asset stores behind one dependency for the
// pipeline coordinator.
type Registry interface {
	ImageRepository
	PrototypeRepository
	GalleryRepository
	JobRepository
	ModelRepository
}
