// Package web provides the HTTP API for the cleaning workspace.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/tidycsv/internal/config"
	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/metrics"
	"github.com/JonMunkholm/tidycsv/internal/publish"
	"github.com/JonMunkholm/tidycsv/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options carries the optional collaborators of a Server.
type Options struct {
	// Metrics enables request metrics and the scrape endpoint.
	Metrics *metrics.Metrics

	// Publisher enables database publishing; nil disables it.
	Publisher *publish.Publisher
}

// Server is the HTTP server for the cleaning workspace.
type Server struct {
	service   *core.Service
	cfg       *config.Config
	metrics   *metrics.Metrics
	publisher *publish.Publisher

	requestLimiter *middleware.RateLimiter
	uploadLimiter  *middleware.RateLimiter

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, opts Options) *Server {
	s := &Server{
		service:        service,
		cfg:            cfg,
		metrics:        opts.Metrics,
		publisher:      opts.Publisher,
		requestLimiter: middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute),
		uploadLimiter:  middleware.NewRateLimiter(cfg.Rate.UploadLimit),
		router:         chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(withRequestMetadata)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.requestLimiter.Handler)
	}
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Get("/tasks", s.handleListTasks)
		r.Get("/uploads/status", s.handleUploadQueueStatus)

		// Saved recipes
		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", s.handleListRecipes)
			r.Post("/", s.handleCreateRecipe)
			r.Get("/match", s.handleMatchRecipes)
			r.Get("/{recipeID}", s.handleGetRecipe)
			r.Delete("/{recipeID}", s.handleDeleteRecipe)
		})

		// Audit log
		r.Get("/audit", s.handleAuditLog)
		r.Get("/audit/export", s.handleAuditLogExport)
		r.Get("/audit/{id}", s.handleAuditLogEntry)

		// Sessions
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(sessionContext)

			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/audit", s.handleSessionAudit)

			r.Get("/files", s.handleListFiles)
			r.With(s.limitUploads).Post("/files", s.handleUpload)
			r.With(s.limitUploads).Post("/fetch", s.handleFetch)

			r.Post("/apply", s.handleApply)
			r.Post("/recipe", s.handleApplyRecipe)
			r.Get("/download", s.handleDownload)

			r.Route("/files/{file}", func(r chi.Router) {
				r.Get("/", s.handleSnapshot)
				r.Delete("/", s.handleRemoveFile)
				r.Get("/preview", s.handlePreview)
				r.Get("/validate", s.handleValidate)
				r.Post("/undo", s.handleUndo)
				r.Post("/redo", s.handleRedo)
				r.Post("/reset", s.handleReset)
				r.Get("/recipe", s.handleExportRecipe)
				r.Post("/publish", s.handlePublish)
			})
		})
	})
}

// limitUploads applies the stricter per-client upload budget.
func (s *Server) limitUploads(next http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return next
	}
	return s.uploadLimiter.Handler(next)
}

// RunJanitors prunes idle rate-limit buckets until ctx is done.
func (s *Server) RunJanitors(ctx context.Context) {
	go s.requestLimiter.Run(ctx)
	go s.uploadLimiter.Run(ctx)
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Preview fragments carry no scripts; inline styles only
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
