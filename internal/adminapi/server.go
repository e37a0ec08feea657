// Package adminapi is the operator-facing HTTP control surface: health,
// forced directory refresh, known-gateway listing, and a live event tail.
// It carries none of the multi-tenant device/application CRUD surface —
// device management is the external device-catalog service's job.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/gateway-bridge/internal/directory"
)

// Server is the admin HTTP server.
type Server struct {
	tokens   *TokenManager
	cache    *directory.Cache
	gateways *GatewayRegistry
	events   *ringBuffer
	router   chi.Router
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer builds the admin router and wraps it in an *http.Server.
func NewServer(tokens *TokenManager, cache *directory.Cache, gateways *GatewayRegistry, eventCapacity int) *Server {
	s := &Server{
		tokens:   tokens,
		cache:    cache,
		gateways: gateways,
		events:   newRingBuffer(eventCapacity),
		router:   chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// EventSink returns the ring buffer as an uplink.EventSink / downlink
// event sink; the pipelines depend only on the Record method.
func (s *Server) EventSink() *ringBuffer {
	return s.events
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/directory/refresh", s.handleRefresh)
			r.Get("/gateways", s.handleGateways)
			r.Get("/events/stream", s.handleEventStream)
		})
	})
}

// ListenAndServe starts the server; it blocks until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("adminapi: listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.tokens.Login(body.Username, body.Password)
	if err != nil {
		log.Warn().Str("username", body.Username).Msg("adminapi: login failed")
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.RefreshAll(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, "directory refresh failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleGateways(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.gateways.List())
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("adminapi: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	for _, entry := range s.events.Snapshot() {
		if err := conn.WriteMessage(websocket.TextMessage, entry); err != nil {
			return
		}
	}

	for payload := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// authMiddleware enforces a valid bearer token on the routes it wraps.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		if _, err := s.tokens.Validate(parts[1]); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
