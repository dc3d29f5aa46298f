package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
// Routes keep the paths existing relay dashboards call.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	// Long-lived and scrape endpoints sit outside the request timeout.
	r.Get(s.wsCfg.Path, s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsCfg.Path, s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Timeouts.Request > 0 {
			r.Use(middleware.Timeout(time.Duration(s.cfg.Timeouts.Request) * time.Second))
		}

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/refresh", s.handleRefresh)

		r.Route("/preset", func(r chi.Router) {
			r.Get("/set/{name}", s.handlePresetSet)
			r.Get("/getPresetNames", s.handlePresetNames)
		})

		r.Get("/relay/{name}/{cmd}", s.handleRelay)
		r.Get("/relays/{tag}/{cmd}", s.handleTag)

		if s.history != nil {
			r.Get("/history", s.handleHistory)
		}

		if s.panel != nil {
			r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
			})
			r.Handle("/ui/*", http.StripPrefix("/ui", s.panel))
		}
	})

	return r
}
