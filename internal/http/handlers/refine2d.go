package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type refine2DRequest struct {
	ImageID        string `json:"image_id"`
	RefinementText string `json:"refinement_text"`
}

// Refine2D creates a new concept image derived from an existing one. The
// original image is preserved; lineage is tracked on the new record.
func (a *App) Refine2D(w http.ResponseWriter, r *http.Request) {
	var req refine2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	img, err := a.Pipeline.RefineConcept(r.Context(), req.ImageID, req.RefinementText)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toConceptImageResponse(img))
}

type batchRefine2DRequest struct {
	ImageID         string   `json:"image_id"`
	RefinementTexts []string `json:"refinement_texts"`
}

type refinementFailureResponse struct {
	RefinementText string `json:"refinement_text"`
	Error          string `json:"error"`
}

// BatchRefine2D generates several refinement variants of one image in a
// single request. Variants fail independently; the response reports both
// outcomes.
func (a *App) BatchRefine2D(w http.ResponseWriter, r *http.Request) {
	var req batchRefine2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	refined, failures, err := a.Pipeline.RefineConceptBatch(r.Context(), req.ImageID, req.RefinementTexts)
	if err != nil {
		a.fail(w, err)
		return
	}
	successful := make([]conceptImageResponse, 0, len(refined))
	for i := range refined {
		successful = append(successful, toConceptImageResponse(&refined[i]))
	}
	failed := make([]refinementFailureResponse, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, refinementFailureResponse{RefinementText: f.RefinementText, Error: f.Err.Error()})
	}
	a.json(w, http.StatusOK, map[string]any{
		"successful":       successful,
		"failed":           failed,
		"total_requested":  len(req.RefinementTexts),
		"total_successful": len(successful),
	})
}

// RefinementHistory returns every version in the refinement lineage
// containing the given image, from the original to the latest variants.
func (a *App) RefinementHistory(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "image_id")
	history, err := a.Pipeline.History(r.Context(), imageID)
	if err != nil {
		a.fail(w, err)
		return
	}
	versions := make([]conceptImageResponse, 0, len(history.Images))
	for i := range history.Images {
		versions = append(versions, toConceptImageResponse(&history.Images[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"root_id":        history.RootID,
		"current_id":     history.CurrentID,
		"history":        versions,
		"total_versions": len(versions),
	})
}
