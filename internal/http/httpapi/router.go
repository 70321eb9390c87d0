package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"conceptforge/internal/http/handlers"
	"conceptforge/internal/middleware"
)

// Options carries the router's cross-cutting settings.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	StaticDir      string
}

// NewRouter builds the HTTP routing table for the pipeline API.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/generate", func(r chi.Router) {
		r.Route("/2d", func(r chi.Router) {
			r.Post("/", app.Generate2D)
			r.Get("/", app.List2D)
			r.Get("/{image_id}", app.Get2D)
		})
		r.Route("/shap_e", func(r chi.Router) {
			r.Post("/", app.GenerateShapE)
			r.Get("/", app.ListShapE)
			r.Get("/{prototype_id}", app.GetShapE)
		})
		r.Route("/meshy", func(r chi.Router) {
			r.Post("/", app.StartFinalization)
			r.Get("/", app.ListFinalModels)
			r.Get("/task/{task_id}", app.PollFinalization)
			r.Get("/{item_id}", app.GetFinalModel)
			r.Get("/{item_id}/archive", app.DownloadArchive)
		})
	})

	r.Route("/refine/2d", func(r chi.Router) {
		r.Post("/", app.Refine2D)
		r.Post("/batch", app.BatchRefine2D)
		r.Get("/{image_id}/history", app.RefinementHistory)
	})

	r.Route("/gallery", func(r chi.Router) {
		r.Post("/save", app.GallerySave)
		r.Get("/", app.GalleryList)
		r.Get("/stats", app.GalleryStats)
		r.Get("/{item_id}", app.GalleryGet)
		r.Delete("/{item_id}", app.GalleryDelete)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
