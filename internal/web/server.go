package web

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hpungsan/lookout/internal/config"
	"github.com/hpungsan/lookout/internal/status"
	"github.com/hpungsan/lookout/internal/stream"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewHandlers builds the route handlers. Static assets come from
// cfg.StaticDir when set, otherwise from the embedded dashboard.
func NewHandlers(model *status.Model, broadcaster *stream.Broadcaster, cfg *config.Config, logger *slog.Logger) (*Handlers, error) {
	if logger == nil {
		logger = slog.Default()
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	var root fs.FS
	if cfg.StaticDir != "" {
		info, err := os.Stat(cfg.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("static dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("static dir: %s is not a directory", cfg.StaticDir)
		}
		root = os.DirFS(cfg.StaticDir)
	} else {
		root, err = fs.Sub(staticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("static sub-FS: %w", err)
		}
	}

	h := &Handlers{
		model:       model,
		broadcaster: broadcaster,
		static:      newStaticFiles(root, templateSub),
		readTimeout: cfg.BodyReadTimeout(),
		logger:      logger,
	}
	if !cfg.DisablePush {
		model.OnChange(h.publish)
	}
	return h, nil
}

// Routes returns the dashboard router.
func Routes(h *Handlers, maxBodyBytes int64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(securityHeaders)

	r.Get("/stream", h.HandleStream)

	r.Route("/api", func(r chi.Router) {
		if maxBodyBytes > 0 {
			r.Use(middleware.RequestSize(maxBodyBytes))
		}
		r.Get("/status", h.HandleGetStatus)
		r.Post("/status", h.HandlePostStatus)
		r.Post("/tasks", h.HandlePostTasks)
		r.Patch("/requests/{id}", h.HandlePatchRequest)
	})

	r.Handle("/*", h.static)

	return r
}

// NewServer creates the HTTP server for the dashboard. Shutting the server down
// closes every open stream first so Shutdown does not wait on them.
func NewServer(model *status.Model, broadcaster *stream.Broadcaster, cfg *config.Config, logger *slog.Logger) (*http.Server, error) {
	h, err := NewHandlers(model, broadcaster, cfg, logger)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           Routes(h, cfg.MaxBodyBytes),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(h.logger.Handler(), slog.LevelWarn),
	}
	srv.RegisterOnShutdown(broadcaster.Close)
	return srv, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("dashboard listening", "url", "http://"+srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, ":") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
