package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type generate2DRequest struct {
	Prompt          string `json:"prompt"`
	RefinementNotes string `json:"refinement_notes"`
}

// Generate2D creates a new 2D concept image from a text prompt.
func (a *App) Generate2D(w http.ResponseWriter, r *http.Request) {
	var req generate2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	img, err := a.Pipeline.GenerateConcept(r.Context(), req.Prompt, req.RefinementNotes)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toConceptImageResponse(img))
}

// Get2D returns one concept image by id.
func (a *App) Get2D(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "image_id")
	img, err := a.Pipeline.GetConcept(r.Context(), imageID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toConceptImageResponse(img))
}

// List2D returns generated concept images, most recent first.
func (a *App) List2D(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	images, err := a.Pipeline.ListConcepts(r.Context(), limit, offset)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]conceptImageResponse, 0, len(images))
	for i := range images {
		items = append(items, toConceptImageResponse(&images[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "skip": offset, "limit": limit})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
