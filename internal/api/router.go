// Package api exposes the Read and Control surfaces over HTTP: thin chi
// handlers delegating directly to the orchestrator, no separate service
// layer — matching the teacher's router/router.go structural template of
// a middleware chain in front of thin per-resource handlers, generalized
// from an LLM-proxy surface to a token-tracking one (spec §4.7, §6).
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dexter-labs/tokentracker/internal/api/middleware"
	"github.com/dexter-labs/tokentracker/internal/tracker"
)

// Server holds the dependencies every handler needs.
type Server struct {
	tracker *tracker.Tracker
	logger  zerolog.Logger
	hub     *Hub
}

// Config tunes the per-IP rate limiter and body size cap applied in front
// of every route.
type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
}

// NewRouter builds the chi router with the full middleware chain and all
// Read/Control routes mounted, plus the optional websocket push channel.
func NewRouter(t *tracker.Tracker, logger zerolog.Logger, cfg Config) http.Handler {
	s := &Server{tracker: t, logger: logger.With().Str("component", "api").Logger()}
	s.hub = newHub(logger)
	go s.hub.run()
	go s.pushLoop()

	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(maxBodySize(cfg.MaxBodyBytes))

	r.Get("/healthz", s.handleHealthz)

	rl := middleware.NewRateLimiter(s.logger, cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Group(func(r chi.Router) {
		r.Use(rl.Handler)

		r.Get("/tokens/top", s.handleTop)
		r.Get("/tokens/holder", s.handleHolder)
		r.Get("/tokens/all", s.handleAll)
		r.Get("/tokens/counts", s.handleCounts)

		r.Get("/blacklist", s.handleBlacklistList)
		r.Post("/blacklist", s.handleBlacklistAdd)
		r.Delete("/blacklist/{addr}", s.handleBlacklistRemove)

		r.Get("/mode", s.handleGetMode)
		r.Post("/mode", s.handleSetMode)
		r.Get("/view-mode", s.handleGetViewMode)
		r.Post("/view-mode", s.handleSetViewMode)

		r.Get("/alert-tiers", s.handleAlertTiersGet)
		r.Post("/alert-tiers", s.handleAlertTiersSet)

		r.Post("/purge", s.handlePurge)
		r.Post("/test/mc-check", s.handleMCCheck)

		r.Get("/ws", s.handleWS)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pushLoop mirrors the polling Top10 projection over the websocket hub so
// a connected UI need not poll (spec §9 EXPANSION).
func (s *Server) pushLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.hub.Broadcast("top10", s.tracker.Top10(s.tracker.ViewMode()))
	}
}

// maxBodySize caps request bodies, mirroring the teacher's mwMaxBodySize.
func maxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", chimw.GetReqID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
