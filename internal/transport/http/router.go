package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vouch/internal/platform/metrics"
	"vouch/pkg/platform/httputil"
	"vouch/pkg/platform/middleware/admin"
	"vouch/pkg/platform/middleware/auth"
	"vouch/pkg/platform/middleware/metadata"
	request "vouch/pkg/platform/middleware/request"
	"vouch/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// RouteRegistrar is implemented by the domain handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// InternalRouteRegistrar mounts service-to-service callbacks.
type InternalRouteRegistrar interface {
	RegisterInternal(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterConfig collects everything NewRouter wires together.
type RouterConfig struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator auth.JWTValidator
	ServiceToken string
	Health       map[string]HealthCheck
	Handlers     []RouteRegistrar
	Internal     []InternalRouteRegistrar
}

// NewRouter builds the HTTP surface. Tenant routes sit behind bearer auth;
// internal callbacks sit behind the service token.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recover(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(cfg.Metrics.Middleware)

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(auth.RequireAuth(cfg.JWTValidator, cfg.Logger))
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(admin.RequireServiceToken(cfg.ServiceToken, cfg.Logger))
		for _, h := range cfg.Internal {
			h.RegisterInternal(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
