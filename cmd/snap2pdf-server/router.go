package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/snap2pdf/cmd/snap2pdf-server/handlers"
	"github.com/spherical/snap2pdf/cmd/snap2pdf-server/middleware"
	"github.com/spherical/snap2pdf/internal/app"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// NewRouter creates the API router. Every GET that no API route claims is
// served by assets, the offline cache of the web UI.
func NewRouter(a *app.App, sessions *workflow.SessionStore, assets http.Handler) http.Handler {
	cfg := a.Config
	logger := a.Logger.WithOperation("http")

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"snap2pdf"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	maxUpload := cfg.Server.MaxUploadBytes
	documentHandler := handlers.NewDocumentHandler(logger, a.Service, maxUpload)
	sessionHandler := handlers.NewSessionHandler(logger, sessions, maxUpload, cfg.Annotation.JPEGQuality)
	systemHandler := handlers.NewSystemHandler(logger, a.Service, sessions, a.Audit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", systemHandler.Status)
		r.Get("/runs", systemHandler.Runs)

		r.Post("/capture", documentHandler.Capture)
		r.Post("/merge", documentHandler.Merge)
		r.Post("/split", documentHandler.Split)
		r.Post("/extract", documentHandler.Extract)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Get("/background", sessionHandler.Background)
				r.Post("/save", sessionHandler.Save)
				r.Post("/texts", sessionHandler.AddText)
				r.Patch("/texts/{textId}", sessionHandler.UpdateText)
				r.Delete("/texts/{textId}", sessionHandler.DeleteText)
			})
		})
	})

	r.Method(http.MethodGet, "/*", assets)
	r.Method(http.MethodHead, "/*", assets)

	return r
}
