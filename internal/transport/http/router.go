// Package httptransport assembles the HTTP surface: the shared middleware
// chain, operational endpoints, and every domain handler's routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensio/internal/platform/metrics"
	"expensio/internal/platform/middleware"
	"expensio/internal/transport/http/shared"
)

// Registerer mounts a domain handler's routes onto the router.
type Registerer interface {
	Register(r chi.Router)
}

// NewRouter builds the service router. Handlers attach their own auth
// middleware; the chain here applies to every route.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, handlers ...Registerer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Latency(m))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
