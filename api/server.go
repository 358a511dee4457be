/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy (rate limit key)
  3. Logger:     zap request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/loans/*          Loan reads and actions
  /api/reports/*        Fine report
  /api/admin/*          Fine batch control
  /api/scenarios/*      Demo scenarios (dev only)
  /healthz              Liveness
  /metrics              Prometheus scrape endpoint

RATE LIMITING:
  Every mutating loan endpoint shares one per-client limit (httprate,
  keyed by IP). Reads are not limited.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries the tunables of the HTTP layer.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      int // requests per RateWindow per client; 0 disables
	RateWindow     time.Duration
}

// DefaultRouterConfig matches the local frontend dev servers.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		RateLimit:      60,
		RateWindow:     time.Minute,
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	limited := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimit > 0 {
		limited = httprate.Limit(cfg.RateLimit, cfg.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Message: "too many requests", Code: "rate_limited"})
			}),
		)
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Get("/{id}", h.GetLoan)

			r.Group(func(r chi.Router) {
				r.Use(limited)
				r.Post("/", h.CreateLoan)
				r.Post("/{id}/submit", h.SubmitLoan)
				r.Post("/{id}/approve", h.DecideApproval)
				r.Post("/{id}/warehouse", h.Warehouse)
				r.Post("/{id}/request-return", h.RequestReturn)
				r.Post("/{id}/request-return-action", h.ReturnAction)
				r.Post("/{id}/extend", h.RequestExtension)
				r.Post("/{id}/extend/decision", h.DecideExtension)
				r.Post("/{id}/fine", h.SetFineFlags)
			})
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/fines", h.FineReport)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.With(limited).Post("/fines/recompute", h.RecomputeFines)
			r.Get("/fines/runs", h.ListFineRuns)
		})

		// Scenario routes (dev only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", r.RemoteAddr),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
