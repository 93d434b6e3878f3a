// Package httpapi assembles the chi router for the service.
package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter wires all routes and the shared middleware chain.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(app.Logger),
	)
	if len(app.Config.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(app.Config.CORSAllowedOrigins))
	}

	r.Get("/health", app.Health)
	r.Method(stdhttp.MethodGet, "/metrics", app.Metrics.Handler())

	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", app.CreateTask)
		r.Get("/", app.ListTasks)
		r.Get("/{taskID}", app.GetTask)
		r.Get("/{taskID}/events", app.StreamTaskEvents)
	})

	r.Get("/outputs/{file}", app.ServeOutput)

	return r
}
