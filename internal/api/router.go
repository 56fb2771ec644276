package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	apiMiddleware "github.com/phrazzld/genserve/internal/api/middleware"
	"github.com/phrazzld/genserve/internal/api/shared"
)

// NewRouter builds the route table shared by every listener.
func NewRouter(handler *GenerationHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewRequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Post("/generate", handler.Generate)
	r.Get("/status/{task_id}", handler.Status)
	r.Get("/image/{image_id}", handler.Image)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, MsgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})

	return gzhttp.GzipHandler(r)
}
