package handlers

import (
	"time"

	"conceptforge/internal/domain"
)

type conceptImageResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Prompt          string    `json:"prompt"`
	RefinementNotes string    `json:"refinement_notes,omitempty"`
	ParentImageID   string    `json:"parent_image_id,omitempty"`
	ImageURL        string    `json:"image_url"`
	CreatedAt       time.Time `json:"created_at"`
}

func toConceptImageResponse(img *domain.ConceptImage) conceptImageResponse {
	return conceptImageResponse{
		ID:              img.ID,
		Name:            img.Name,
		Prompt:          img.Prompt,
		RefinementNotes: img.RefinementNotes,
		ParentImageID:   img.ParentImageID,
		ImageURL:        img.ImageURL,
		CreatedAt:       img.CreatedAt,
	}
}

type prototypeResponse struct {
	ID            string    `json:"id"`
	SourceImageID string    `json:"source_image_id"`
	Name          string    `json:"name"`
	GifURL        string    `json:"gif_url,omitempty"`
	ObjURL        string    `json:"obj_url,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPrototypeResponse(proto *domain.Prototype) prototypeResponse {
	return prototypeResponse{
		ID:            proto.ID,
		SourceImageID: proto.SourceImageID,
		Name:          proto.Name,
		GifURL:        proto.GifURL,
		ObjURL:        proto.ObjURL,
		Status:        string(proto.Status),
		CreatedAt:     proto.CreatedAt,
	}
}

type galleryItemResponse struct {
	ID          string    `json:"id"`
	PrototypeID string    `json:"prototype_id"`
	Name        string    `json:"name"`
	AssetType   string    `json:"asset_type"`
	Status      string    `json:"status"`
	GifURL      string    `json:"gif_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toGalleryItemResponse(item *domain.GalleryItem) galleryItemResponse {
	return galleryItemResponse{
		ID:          item.ID,
		PrototypeID: item.PrototypeID,
		Name:        item.Name,
		AssetType:   string(item.AssetType),
		Status:      string(item.Status),
		GifURL:      item.GifURL,
		CreatedAt:   item.CreatedAt,
	}
}

type finalizationJobResponse struct {
	TaskID        string `json:"task_id"`
	GalleryItemID string `json:"gallery_item_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

func toFinalizationJobResponse(job *domain.FinalizationJob) finalizationJobResponse {
	return finalizationJobResponse{
		TaskID:        job.TaskID,
		GalleryItemID: job.GalleryItemID,
		Status:        string(job.Status),
		Progress:      job.Progress,
		ErrorMessage:  job.ErrorMessage,
	}
}

type finalModelResponse struct {
	GalleryItemID string    `json:"gallery_item_id"`
	ObjURL        string    `json:"obj_url,omitempty"`
	FbxURL        string    `json:"fbx_url,omitempty"`
	TextureURL    string    `json:"texture_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toFinalModelResponse(model *domain.FinalModel) finalModelResponse {
	return finalModelResponse{
		GalleryItemID: model.GalleryItemID,
		ObjURL:        model.ObjURL,
		FbxURL:        model.FbxURL,
		TextureURL:    model.TextureURL,
		CreatedAt:     model.CreatedAt,
	}
}
