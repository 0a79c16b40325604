package web

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/web/handlers"
	"github.com/kozaktomas/attendance-kiosk/internal/web/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/web/static"
)

func (s *Server) setupRoutes() {
	sessionsHandler := handlers.NewSessionsHandler(s.controller.Browser())
	captureHandler := handlers.NewCaptureHandler(s.controller, s.location)
	recordsHandler := handlers.NewRecordsHandler(s.records)
	ledgerHandler := handlers.NewLedgerHandler()
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.Token))

		// The event stream is long-lived and must not be cut by the timeout.
		r.Get("/capture/events", captureHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(s.requestTimeout()))

			r.Get("/config", configHandler.Get)

			// Sessions
			r.Get("/sessions", sessionsHandler.List)
			r.Post("/sessions", sessionsHandler.Create)
			r.Post("/sessions/refresh", sessionsHandler.Refresh)
			r.Post("/sessions/{id}/join", captureHandler.Join)

			// Capture
			r.Get("/capture", captureHandler.State)
			r.Post("/capture/start", captureHandler.Start)
			r.Post("/capture/trigger", captureHandler.Trigger)
			r.Post("/capture/confirm", captureHandler.Confirm)
			r.Post("/capture/dismiss", captureHandler.Dismiss)
			r.Post("/capture/stop", captureHandler.Stop)
			r.Get("/capture/present", captureHandler.Present)

			// Records
			r.Get("/records", recordsHandler.Preview)
			r.Get("/records/export", recordsHandler.Export)

			// Local ledger
			r.Get("/ledger/{id}", ledgerHandler.List)
		})
	})

	s.router.Get("/*", s.serveUI)
}

// requestTimeout bounds every API request except the event stream. It has
// to outlast the slowest remote call a handler makes.
func (s *Server) requestTimeout() time.Duration {
	if d := max(s.config.Timeouts.Export, s.config.Timeouts.Recognize); d > 0 {
		return d + 30*time.Second
	}
	return 5 * time.Minute
}

// serveUI serves the embedded operator page.
func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	if static.HasDist() {
		fs := static.GetFileSystem()
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		if f, err := fs.Open(path); err == nil {
			defer f.Close()
			if stat, err := f.Stat(); err == nil && !stat.IsDir() {
				contentType := "application/octet-stream"
				switch {
				case strings.HasSuffix(path, ".html"):
					contentType = "text/html; charset=utf-8"
				case strings.HasSuffix(path, ".css"):
					contentType = "text/css; charset=utf-8"
				case strings.HasSuffix(path, ".js"):
					contentType = "application/javascript; charset=utf-8"
				}
				w.Header().Set("Content-Type", contentType)
				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}
	}

	http.NotFound(w, r)
}
