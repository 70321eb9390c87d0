package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"conceptforge/internal/domain"
	"conceptforge/internal/pipeline"
)

// App is the handler container wiring the HTTP surface to the pipeline
// coordinator.
type App struct {
	Pipeline *pipeline.Coordinator
	Logger   zerolog.Logger
}

func NewApp(coordinator *pipeline.Coordinator, logger zerolog.Logger) *App {
	return &App{Pipeline: coordinator, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// fail maps domain errors onto HTTP status codes. The error text carries the
// raw upstream body for external failures, so it is passed through verbatim.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrJobFailed):
		a.error(w, http.StatusBadGateway, "job_failed", err.Error())
	case errors.Is(err, domain.ErrExternalService):
		a.error(w, http.StatusBadGateway, "external_service_error", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
