package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conceptforge/internal/domain"
)

type gallerySaveRequest struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
}

// GallerySave promotes a prototype into the gallery.
func (a *App) GallerySave(w http.ResponseWriter, r *http.Request) {
	var req gallerySaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	item, err := a.Pipeline.SaveToGallery(r.Context(), req.ItemID, req.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toGalleryItemResponse(item))
}

// GalleryList returns gallery items matching the query filters.
func (a *App) GalleryList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := domain.GalleryFilter{
		AssetType: domain.AssetType(r.URL.Query().Get("asset_type")),
		Status:    domain.AssetStatus(r.URL.Query().Get("status_filter")),
		Limit:     limit,
		Offset:    offset,
	}
	list, err := a.Pipeline.ListGallery(r.Context(), filter)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]galleryItemResponse, 0, len(list))
	for i := range list {
		items = append(items, toGalleryItemResponse(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "skip": offset, "limit": limit})
}

// GalleryStats summarizes gallery contents by type and status.
func (a *App) GalleryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Pipeline.GalleryStats(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, stats)
}

// GalleryGet returns one gallery item by id.
func (a *App) GalleryGet(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	item, err := a.Pipeline.GetGalleryItem(r.Context(), itemID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toGalleryItemResponse(item))
}

// GalleryDelete removes a gallery item. The prototype and concept image the
// item was derived from remain retrievable.
func (a *App) GalleryDelete(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	if err := a.Pipeline.DeleteGalleryItem(r.Context(), itemID); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "deleted", "id": itemID})
}
