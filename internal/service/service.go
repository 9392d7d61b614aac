package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banarnia/infected/internal/admin"
	"github.com/banarnia/infected/internal/auth"
	"github.com/banarnia/infected/internal/config"
	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/eventbus"
	"github.com/banarnia/infected/internal/listener"
	"github.com/banarnia/infected/internal/messages"
	"github.com/banarnia/infected/internal/node"
	"github.com/banarnia/infected/internal/world"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidTickDuration      = errors.New("service: invalid tick duration")
	ErrInvalidHeartbeatInterval = errors.New("service: invalid heartbeat interval")
	ErrNotBootstrapped          = errors.New("service: not bootstrapped")
)

// ServiceConfig configures the standalone runtime. ConfigPath, when set, is re-read on Reload.
type ServiceConfig struct {
	ServiceID  string
	ConfigPath string
	Settings   config.Settings
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ServiceID: "infected.local",
		Settings:  config.Default(),
	}
}

// Service wires the world, event bus, engine, scheduler, listener, message catalog and admin
// surface together and runs them until shutdown.
type Service struct {
	cfg      ServiceConfig
	instance uuid.UUID
	clock    contagion.Clock

	mu       sync.RWMutex
	settings config.Settings

	world     *world.World
	bus       *eventbus.Bus
	engine    *contagion.Engine
	scheduler *contagion.Scheduler
	listener  *listener.Listener
	catalog   *messages.Catalog
	admin     *admin.Server
	adminAddr string
	detach    func()
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.ServiceID) == "" {
		cfg.ServiceID = "infected.local"
	}
	return &Service{
		cfg:      cfg,
		instance: uuid.New(),
		clock:    contagion.SystemClock{},
		settings: cfg.Settings,
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext bootstraps the service and serves until ctx is done.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.bootstrap(); err != nil {
		return err
	}
	return s.serve(ctx)
}

func validate(settings config.Settings) error {
	if settings.TickDuration <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTickDuration, settings.TickDuration)
	}
	if settings.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidHeartbeatInterval, settings.HeartbeatInterval)
	}
	return settings.Validate()
}

func (s *Service) bootstrap() error {
	settings := s.Settings()
	if err := validate(settings); err != nil {
		return err
	}

	catalog, err := messages.Load(settings.MessagesPath, settings.Locale)
	if err != nil {
		return err
	}

	w := world.New(world.DefaultConfig())
	w.SetInfectionEffects(buildEffects(settings))
	bus := eventbus.New()
	engine := contagion.NewEngine(settings.Contagion, contagion.Deps{
		Clock:      s.clock,
		Population: w,
		Proximity:  w,
		Effects:    w,
		Sink:       bus,
	})
	sched, err := contagion.NewScheduler(engine, settings.CheckPeriod())
	if err != nil {
		return err
	}
	l := listener.New(engine, w, catalog, settings.GlowEnabled)

	s.mu.Lock()
	s.world = w
	s.bus = bus
	s.engine = engine
	s.scheduler = sched
	s.listener = l
	s.catalog = catalog
	s.detach = l.Attach(bus)
	s.admin = admin.New(s.cfg.ServiceID, settings.CorsOrigins, admin.Deps{
		Scheduler: sched,
		World:     w,
		Listener:  l,
		Catalog:   catalog,
		Reload:    s.Reload,
		Auth:      auth.FromToken(settings.AdminToken),
	})
	s.mu.Unlock()

	log.Info().
		Str("service", s.cfg.ServiceID).
		Str("instance", s.instance.String()).
		Dur("period", settings.CheckPeriod()).
		Str("locale", catalog.Locale().String()).
		Msg("service.Service.bootstrap ready")
	return nil
}

func buildEffects(settings config.Settings) []world.PotionEffect {
	effects, skipped := world.BuildEffects(settings.Effects, settings.Contagion.InfectionDuration())
	for _, err := range skipped {
		log.Warn().Err(err).Msg("service.buildEffects skipping")
	}
	return effects
}

func (s *Service) serve(ctx context.Context) error {
	settings := s.Settings()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.scheduler.Run(gctx)
	})
	if strings.TrimSpace(settings.AdminListenAddr) != "" {
		g.Go(func() error {
			return s.serveNode(gctx, s.admin, settings)
		})
	}
	g.Go(func() error {
		return s.heartbeat(gctx, settings.HeartbeatInterval)
	})

	err := g.Wait()
	s.mu.Lock()
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	s.mu.Unlock()
	log.Info().Str("service", s.cfg.ServiceID).Msg("service.Service.serve shutdown")
	return err
}

// serveNode serves n's router on the admin listener until ctx is done.
func (s *Service) serveNode(ctx context.Context, n node.Node, settings config.Settings) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(settings.AdminListenAddr))
	if err != nil {
		return fmt.Errorf("%s listen: %w", n.Kind(), err)
	}
	s.mu.Lock()
	s.adminAddr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           n.HTTPRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	useTLS := settings.AdminTLSCertFile != ""
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("node", n.NodeID()).
			Str("kind", n.Kind()).
			Str("addr", ln.Addr().String()).
			Bool("tls", useTLS).
			Msg("service.Service.serveNode listening")
		if useTLS {
			errCh <- srv.ServeTLS(ln, settings.AdminTLSCertFile, settings.AdminTLSKeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Service) heartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var infected, protected int
			doCtx, cancel := context.WithTimeout(ctx, interval)
			err := s.scheduler.Do(doCtx, func(e *contagion.Engine) {
				infected, protected = e.State().Counts()
			})
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Msg("service.Service.heartbeat skipped")
				continue
			}
			period, armed := s.scheduler.Period()
			log.Info().
				Str("service", s.cfg.ServiceID).
				Int("online", s.world.OnlineCount()).
				Int("infected", infected).
				Int("protected", protected).
				Uint64("sweeps", s.scheduler.Ticks()).
				Dur("period", period).
				Bool("armed", armed).
				Msg("service.Service.heartbeat")
		}
	}
}

// Reload re-reads the config file and the message catalog and applies them to the running
// components. Timers already running keep their expiry.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.RLock()
	sched := s.scheduler
	s.mu.RUnlock()
	if sched == nil {
		return ErrNotBootstrapped
	}

	settings := s.Settings()
	if path := strings.TrimSpace(s.cfg.ConfigPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		settings = loaded
	}
	if err := validate(settings); err != nil {
		return err
	}
	if err := s.catalog.Configure(settings.MessagesPath, settings.Locale); err != nil {
		return err
	}

	s.world.SetInfectionEffects(buildEffects(settings))
	s.listener.SetGlow(settings.GlowEnabled)
	if err := sched.Do(ctx, func(e *contagion.Engine) {
		e.Reconfigure(settings.Contagion)
	}); err != nil {
		return err
	}
	if err := sched.Restart(settings.CheckPeriod()); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	log.Info().
		Str("service", s.cfg.ServiceID).
		Dur("period", settings.CheckPeriod()).
		Bool("glow", settings.GlowEnabled).
		Msg("service.Service.Reload applied")
	return nil
}

// Settings returns the settings currently in effect.
func (s *Service) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Service) Scheduler() *contagion.Scheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

func (s *Service) World() *world.World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world
}

func (s *Service) Bus() *eventbus.Bus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bus
}

// AdminAddr is the bound admin listener address, empty until it is listening.
func (s *Service) AdminAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminAddr
}

func (s *Service) Admin() *admin.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}
