package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/banarnia/infected/internal/auth"
	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/messages"
	"github.com/banarnia/infected/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const reloadedMessage = "§eThe configs have been reloaded."

type joinRequest struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Position world.Vec3 `json:"position"`
	OnGround *bool      `json:"on_ground"`
	Mode     string     `json:"mode"`
}

type moveRequest struct {
	Position world.Vec3 `json:"position"`
	OnGround bool       `json:"on_ground"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type consumeRequest struct {
	Item string `json:"item"`
}

type playerResponse struct {
	Player world.PlayerView `json:"player"`
	Status contagion.Status `json:"status"`
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := r.Group("", auth.Require(s.deps.Auth))
	g.POST("/reload", s.handleReload)
	g.GET("/players", s.handleListPlayers)
	g.POST("/players", s.handleJoin)
	g.GET("/players/:id", s.handleGetPlayer)
	g.DELETE("/players/:id", s.handleQuit)
	g.PUT("/players/:id/position", s.handleMove)
	g.PUT("/players/:id/mode", s.handleMode)
	g.POST("/players/:id/infect", s.handleInfect)
	g.POST("/players/:id/cure", s.handleCure)
	g.POST("/players/:id/death", s.handleDeath)
	g.POST("/players/:id/consume", s.handleConsume)
}

// do runs fn on the scheduler loop with the request deadline.
func (s *Server) do(c *gin.Context, fn func(*contagion.Engine)) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	if err := s.deps.Scheduler.Do(ctx, fn); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("admin.Server.do failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// lookup resolves :id as a UUID or, failing that, a player name.
func (s *Server) lookup(c *gin.Context) (world.PlayerView, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	if id, err := uuid.Parse(raw); err == nil {
		if v, ok := s.deps.World.Player(id); ok {
			return v, true
		}
	} else if v, ok := s.deps.World.PlayerByName(raw); ok {
		return v, true
	}
	c.JSON(http.StatusNotFound, gin.H{"error": world.ErrPlayerNotFound.Error(), "id": raw})
	return world.PlayerView{}, false
}

// lookupOnline is lookup restricted to online players, as commands require.
func (s *Server) lookupOnline(c *gin.Context) (world.PlayerView, bool) {
	v, ok := s.lookup(c)
	if !ok {
		return v, false
	}
	if !v.Online {
		c.JSON(http.StatusNotFound, gin.H{"error": "player offline", "id": v.ID})
		return v, false
	}
	return v, true
}

func (s *Server) handleHealth(c *gin.Context) {
	var infected, protected int
	if !s.do(c, func(e *contagion.Engine) {
		infected, protected = e.State().Counts()
	}) {
		return
	}
	period, armed := s.deps.Scheduler.Period()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.started).String(),
		"service":   s.id,
		"version":   Version,
		"online":    s.deps.World.OnlineCount(),
		"infected":  infected,
		"protected": protected,
		"period":    period.String(),
		"armed":     armed,
		"sweeps":    s.deps.Scheduler.Ticks(),
		"locale":    s.deps.Catalog.Locale().String(),
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if s.deps.Reload == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload not configured"})
		return
	}
	if err := s.deps.Reload(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("admin.Server.handleReload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": reloadedMessage})
}

func (s *Server) handleListPlayers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"players": s.deps.World.Online()})
}

func (s *Server) handleJoin(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	join := world.JoinRequest{Name: req.Name, Position: req.Position, OnGround: true}
	if req.OnGround != nil {
		join.OnGround = *req.OnGround
	}
	if strings.TrimSpace(req.ID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(req.ID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		join.ID = id
	}
	mode, err := world.ParseGameMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	join.Mode = mode

	view, err := s.deps.World.Join(join)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, world.ErrPlayerExists):
			status = http.StatusConflict
		case errors.Is(err, world.ErrInvalidName):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"player": view})
}

func (s *Server) handleGetPlayer(c *gin.Context) {
	v, ok := s.lookup(c)
	if !ok {
		return
	}
	var status contagion.Status
	if !s.do(c, func(e *contagion.Engine) { status = e.Status(v.ID) }) {
		return
	}
	v, _ = s.deps.World.Player(v.ID)
	c.JSON(http.StatusOK, playerResponse{Player: v, Status: status})
}

func (s *Server) handleMove(c *gin.Context) {
	v, ok := s.lookupOnline(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.World.Move(v.ID, req.Position, req.OnGround); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	v, _ = s.deps.World.Player(v.ID)
	c.JSON(http.StatusOK, gin.H{"player": v})
}

func (s *Server) handleMode(c *gin.Context) {
	v, ok := s.lookup(c)
	if !ok {
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := world.ParseGameMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.World.SetGameMode(v.ID, mode); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	v, _ = s.deps.World.Player(v.ID)
	c.JSON(http.StatusOK, gin.H{"player": v})
}

func (s *Server) handleInfect(c *gin.Context) {
	v, ok := s.lookupOnline(c)
	if !ok {
		return
	}
	var (
		rejection contagion.Rejection
		status    contagion.Status
	)
	if !s.do(c, func(e *contagion.Engine) {
		rejection = e.TryInfect(v.ID, nil, contagion.CauseCommand)
		status = e.Status(v.ID)
	}) {
		return
	}
	switch rejection {
	case contagion.RejectNone:
		c.JSON(http.StatusOK, gin.H{"status": status})
	case contagion.RejectInfected:
		c.JSON(http.StatusConflict, gin.H{
			"error":  s.deps.Catalog.Render(messages.ErrorPlayerAlreadyInfected, nil),
			"reason": rejection,
			"status": status,
		})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  s.deps.Catalog.Render(messages.ErrorPlayerCantGetInfected, nil),
			"reason": rejection,
			"status": status,
		})
	}
}

func (s *Server) handleCure(c *gin.Context) {
	v, ok := s.lookupOnline(c)
	if !ok {
		return
	}
	var (
		cured  bool
		status contagion.Status
	)
	if !s.do(c, func(e *contagion.Engine) {
		if e.IsInfected(v.ID) {
			e.Cure(v.ID, contagion.CureCommand)
			cured = true
		}
		status = e.Status(v.ID)
	}) {
		return
	}
	if !cured {
		c.JSON(http.StatusConflict, gin.H{
			"error":  s.deps.Catalog.Render(messages.ErrorPlayerIsNotInfected, nil),
			"status": status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handleDeath(c *gin.Context) {
	v, ok := s.lookupOnline(c)
	if !ok {
		return
	}
	var cured bool
	if !s.do(c, func(*contagion.Engine) { cured = s.deps.Listener.Died(v.ID) }) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"cured": cured})
}

func (s *Server) handleConsume(c *gin.Context) {
	v, ok := s.lookupOnline(c)
	if !ok {
		return
	}
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := strings.ToLower(strings.TrimSpace(req.Item))
	var cured bool
	if !s.do(c, func(*contagion.Engine) { cured = s.deps.Listener.ItemConsumed(v.ID, item) }) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"cured": cured, "item": item})
}

func (s *Server) handleQuit(c *gin.Context) {
	v, ok := s.lookupOnline(c)
	if !ok {
		return
	}
	var cured bool
	if !s.do(c, func(*contagion.Engine) { cured = s.deps.Listener.Quit(v.ID) }) {
		return
	}
	if err := s.deps.World.Quit(v.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cured": cured})
}
