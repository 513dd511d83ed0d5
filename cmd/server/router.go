package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cognivers/pipeline/internal/api"
	"github.com/cognivers/pipeline/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	pipelineHandler := api.NewPipelineHandler(app.eventEmitter, app.responseStore, app.logger)
	resultsHandler := api.NewResultsHandler(app.resultStore, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Write side: fire-and-forget triggers that queue background work.
		r.Post("/responses/{id}/dispatch", pipelineHandler.DispatchResponse)
		r.Post("/responses/{id}/requeue", pipelineHandler.RequeueResponse)
		r.Post("/questionnaires/{id}/queue-all", pipelineHandler.QueueAll)

		// Read side: stored processing results.
		r.Get("/responses/{id}/results", resultsHandler.ListResponseResults)
		r.Get("/results/{id}", resultsHandler.GetResult)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
