package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-speech-upload-service/internal/app"
	"ai-speech-upload-service/internal/observability"
	"ai-speech-upload-service/internal/observability/metrics"
)

// UploadsPrefix is where signed PUTs land when objects are stored in memory.
const UploadsPrefix = "/objects"

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{app: application}
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.HTTPMiddleware(metrics.DefaultMetrics))
	r.Use(middleware.Recoverer)

	health := func(r chi.Router) {
		r.Get("/liveness", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.Get("/readiness", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			if failures := observability.CheckAll(ctx, application.Readiness); len(failures) > 0 {
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Service is not ready.", Details: failures})
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
	}

	// API routes, served under /v1 and at the root for existing clients.
	api := func(r chi.Router) {
		r.Post("/upload-session", h.createSession)
		r.Get("/upload-session/{sessionId}", h.sessionStatus)
		r.Post("/get-presigned-url", h.presign)
		r.Post("/notify-chunk-uploaded", h.notify)
		r.Post("/complete-session", h.complete)
		r.Post("/transcribe-audio", h.transcribe)
	}
	r.Route("/v1", func(r chi.Router) {
		health(r)
		api(r)
	})
	r.Group(api)

	if application.Uploads != nil {
		r.Handle(UploadsPrefix+"/*", http.StripPrefix(UploadsPrefix+"/", application.Uploads))
	}

	return r
}
