package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type startFinalizationRequest struct {
	// PrototypeID carries the gallery item id of the saved prototype.
	PrototypeID string `json:"prototype_id"`
}

// StartFinalization submits a gallery item to the finalization service and
// answers 202 with the job snapshot; the model is produced asynchronously.
func (a *App) StartFinalization(w http.ResponseWriter, r *http.Request) {
	var req startFinalizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Pipeline.StartFinalization(r.Context(), req.PrototypeID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, toFinalizationJobResponse(job))
}

// PollFinalization returns the current job state for a task, refreshing it
// from the upstream service while the job is still live.
func (a *App) PollFinalization(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	job, err := a.Pipeline.PollFinalization(r.Context(), taskID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toFinalizationJobResponse(job))
}

// GetFinalModel returns the materialized model for a gallery item.
func (a *App) GetFinalModel(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	model, err := a.Pipeline.FinalModel(r.Context(), itemID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toFinalModelResponse(model))
}

// ListFinalModels returns materialized models, most recent first.
func (a *App) ListFinalModels(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	models, err := a.Pipeline.ListFinalModels(r.Context(), limit, offset)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]finalModelResponse, 0, len(models))
	for i := range models {
		items = append(items, toFinalModelResponse(&models[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "skip": offset, "limit": limit})
}

// DownloadArchive streams the stored model files for a gallery item as a zip.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	archive, model, err := a.Pipeline.GalleryArchive(r.Context(), itemID)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", model.GalleryItemID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
