// Package admin is the HTTP control surface: infect/cure/reload commands, host world hooks
// (join, move, death, item use, quit) and status, health and metrics endpoints.
package admin

import (
	"context"
	"strings"
	"time"

	"github.com/banarnia/infected/internal/auth"
	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/listener"
	"github.com/banarnia/infected/internal/messages"
	"github.com/banarnia/infected/internal/node"
	"github.com/banarnia/infected/internal/observability"
	"github.com/banarnia/infected/internal/world"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// Deps are the collaborators the routes drive. Reload may be nil. A nil Auth leaves the
// player and reload routes open.
type Deps struct {
	Scheduler *contagion.Scheduler
	World     *world.World
	Listener  *listener.Listener
	Catalog   *messages.Catalog
	Reload    func(ctx context.Context) error
	Auth      auth.Validator
}

type Server struct {
	id      string
	deps    Deps
	router  *gin.Engine
	started time.Time
	timeout time.Duration
}

var _ node.Node = (*Server)(nil)

func New(id string, corsOrigins []string, deps Deps) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		id:      id,
		deps:    deps,
		router:  r,
		started: time.Now(),
		timeout: 5 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) NodeID() string {
	return s.id
}

func (s *Server) Kind() string {
	return "admin"
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		out = append(out, origin)
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
