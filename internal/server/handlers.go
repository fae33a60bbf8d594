package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/labring/devbox-console/pkg/common"
	"github.com/labring/devbox-console/pkg/handlers"
	"github.com/labring/devbox-console/pkg/handlers/servers"
	"github.com/labring/devbox-console/pkg/handlers/user"
	"github.com/labring/devbox-console/pkg/handlers/websocket"
	"github.com/labring/devbox-console/pkg/middleware"
)

// routeConfig defines route configuration
type routeConfig struct {
	Method   string
	Pattern  string
	Function http.HandlerFunc
	Public   bool
}

// registerRoutes wires the middleware stack and every API route
func (s *Server) registerRoutes() {
	healthHandler := handlers.NewHealthHandler(s.host)
	userHandler := user.NewUserHandler(s.users, s.logins)
	serverHandler := servers.NewServerHandler(s.host, s.config.ReadChunkBytes, s.metrics)
	wsConfig := websocket.NewDefaultWebSocketConfig()
	wsConfig.ReadChunk = s.config.ReadChunkBytes
	s.ws = websocket.NewWebSocketHandler(s.host, wsConfig)

	routes := []routeConfig{
		// Health endpoints
		{"GET", "/health", healthHandler.HealthCheck, true},
		{"GET", "/health/ready", healthHandler.ReadinessCheck, true},
		{"GET", "/metrics", s.metrics.handler().ServeHTTP, true},

		// Login and session validation
		{"POST", "/api/v1/user/login", userHandler.Login, true},
		{"GET", "/api/v1/user/valid", userHandler.Valid, true},
		{"POST", "/api/v1/user/logout", userHandler.Logout, false},

		// Targets
		{"GET", "/api/v1/servers", serverHandler.ListServers, false},
		{"POST", "/api/v1/servers/data", serverHandler.ReadData, false},
		{"POST", "/api/v1/servers/exec", serverHandler.Exec, false},

		// Push stream
		{"GET", "/ws", s.ws.HandleWebSocket, false},
	}

	var public []string
	for _, route := range routes {
		if route.Public {
			public = append(public, route.Pattern)
		}
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", common.HeaderUser, "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))
	s.router.Use(
		middleware.Logger(),
		middleware.Recovery(),
		s.metrics.middleware,
		middleware.SessionAuth(s.logins, public),
	)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.WriteErrorResponse(w, common.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.WriteErrorResponse(w, common.StatusInvalidRequest, "method not allowed")
	})

	for _, route := range routes {
		slog.Debug("Registering route",
			slog.String("method", route.Method),
			slog.String("pattern", route.Pattern),
		)
		s.router.Method(route.Method, route.Pattern, route.Function)
	}
}
