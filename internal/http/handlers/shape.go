package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conceptforge/internal/domain"
)

type generateShapERequest struct {
	ImageID string `json:"image_id"`
}

// GenerateShapE converts a concept image into a 3D prototype.
func (a *App) GenerateShapE(w http.ResponseWriter, r *http.Request) {
	var req generateShapERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	proto, err := a.Pipeline.GeneratePrototype(r.Context(), req.ImageID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toPrototypeResponse(proto))
}

// GetShapE returns one prototype by id.
func (a *App) GetShapE(w http.ResponseWriter, r *http.Request) {
	prototypeID := chi.URLParam(r, "prototype_id")
	proto, err := a.Pipeline.GetPrototype(r.Context(), prototypeID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toPrototypeResponse(proto))
}

// ListShapE returns prototypes, optionally filtered by status.
func (a *App) ListShapE(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	status := domain.AssetStatus(r.URL.Query().Get("status_filter"))
	prototypes, err := a.Pipeline.ListPrototypes(r.Context(), status, limit, offset)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]prototypeResponse, 0, len(prototypes))
	for i := range prototypes {
		items = append(items, toPrototypeResponse(&prototypes[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "skip": offset, "limit": limit})
}
