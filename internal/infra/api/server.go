package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mentalspace/internal/config"
	"mentalspace/internal/usecase"
)

// Server exposes the REST API, the websocket endpoint and operational routes.
type Server struct {
	chatUC      usecase.ChatUseCase
	counselorUC usecase.CounselorUseCase
	authUC      usecase.AuthUseCase
	limiter     Limiter
	ws          http.Handler

	cfg     *config.Config
	version string
	log     *zerolog.Logger
	server  *http.Server
}

func NewServer(
	cfg *config.Config,
	chatUC usecase.ChatUseCase,
	counselorUC usecase.CounselorUseCase,
	authUC usecase.AuthUseCase,
	limiter Limiter,
	ws http.Handler,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	s := &Server{
		chatUC:      chatUC,
		counselorUC: counselorUC,
		authUC:      authUC,
		limiter:     limiter,
		ws:          ws,
		cfg:         cfg,
		version:     cfg.Server.Version,
		log:         &l,
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.Server.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	rl := s.cfg.RateLimit
	if s.ws != nil {
		// no request timeout: the connection outlives the handshake
		ws := s.ws
		if s.limiter != nil {
			ws = Chain(ws, RateLimit(s.limiter, "api", rl.Requests, rl.Window, s.log))
		}
		r.Method(http.MethodGet, "/ws", ws)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(Timeout(s.cfg.Server.RequestTimeout))
		if s.limiter != nil {
			r.Use(RateLimit(s.limiter, "api", rl.Requests, rl.Window, s.log))
		}

		r.Route("/auth", func(r chi.Router) {
			if s.limiter != nil {
				r.Use(RateLimit(s.limiter, "auth", rl.AuthRequests, rl.Window, s.log))
			}
			r.Post("/login", s.handleLogin)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(RequireAuth(s.authUC, s.log))

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/{id}/messages", s.handleGetMessages)
			r.Post("/sessions/{id}/messages", s.handleSendMessage)
			r.Put("/sessions/{id}/rate", s.handleRateSession)
			r.Put("/sessions/{id}/end", s.handleEndSession)
			r.Put("/sessions/{id}/escalate", s.handleEscalateSession)

			r.Get("/counselors/available", s.handleAvailableCounselors)
			r.Put("/counselors/me/presence", s.handlePresence)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Route not found", Kind: "not_found"})
	})
	return r
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
