package domain

import "time"

// AssetType enumerates the pipeline tiers an asset can belong to.
type AssetType string

const (
	AssetTypeImage2D    AssetType = "image_2d"
	AssetTypePrototype  AssetType = "prototype"
	AssetTypeFinalModel AssetType = "final"
)

// AssetStatus enumerates asset lifecycle states.
type AssetStatus string

const (
	AssetStatusPending    AssetStatus = "pending"
	AssetStatusProcessing AssetStatus = "processing"
	AssetStatusCompleted  AssetStatus = "completed"
	AssetStatusFailed     AssetStatus = "failed"
)

// ConceptImage is a generated 2D concept. Refinement produces a new
// ConceptImage with ParentImageID set; existing images are never mutated.
type ConceptImage struct {
	ID              string
	Prompt          string
	RefinementNotes string
	ParentImageID   string
	ImageURL        string
	Name            string
	CreatedAt       time.Time
}

// Prototype is a low-fidelity 3D mesh derived from a ConceptImage. ObjURL may
// be empty while the mesh service is still writing geometry.
type Prototype struct {
	ID            string
	SourceImageID string
	Name          string
	GifURL        string
	ObjURL        string
	Status        AssetStatus
	CreatedAt     time.Time
}

// GalleryItem is a curated prototype. A prototype only becomes eligible for
// finalization once promoted into the gallery.
type GalleryItem struct {
	ID          string
	PrototypeID string
	Name        string
	AssetType   AssetType
	Status      AssetStatus
	GifURL      string
	CreatedAt   time.Time
}

// FinalModel holds download URLs for a production-quality model. It is
// written exactly once, after the finalization job succeeds.
type FinalModel struct {
	GalleryItemID string
	ObjURL        string
	FbxURL        string
	TextureURL    string
	CreatedAt     time.Time
}

// GalleryStats summarizes gallery contents by tier and status.
type GalleryStats struct {
	TotalItems int            `json:"total_items"`
	ByType     map[string]int `json:"by_type"`
	ByStatus   map[string]int `json:"by_status"`
}
