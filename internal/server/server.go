package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/labring/devbox-console/pkg/auth"
	"github.com/labring/devbox-console/pkg/config"
	"github.com/labring/devbox-console/pkg/handlers/websocket"
	"github.com/labring/devbox-console/pkg/host"
)

// Server represents the main application server
type Server struct {
	router  *chi.Mux
	config  *config.Config
	host    *host.Host
	users   *auth.Users
	logins  *auth.Logins
	metrics *metrics
	ws      *websocket.WebSocketHandler
}

// New creates a server over an already populated host
func New(cfg *config.Config, h *host.Host) (*Server, error) {
	slog.Info("Initializing server...")

	if len(cfg.Users) == 0 {
		slog.Warn("no users configured; every login will be rejected")
	}

	srv := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		host:    h,
		users:   auth.NewUsers(cfg.Users),
		logins:  auth.NewLogins(cfg.LoginTTL),
		metrics: newMetrics(h),
	}

	srv.registerRoutes()

	slog.Info("Server initialized successfully")
	return srv, nil
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Cleanup disconnects stream subscribers and stops every target
func (s *Server) Cleanup(timeout time.Duration) error {
	slog.Info("Performing server cleanup...")

	if s.ws != nil {
		s.ws.Close()
	}
	s.host.Stop(timeout)
	return nil
}
