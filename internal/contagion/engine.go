package contagion

import (
	"time"

	"github.com/banarnia/infected/internal/observability"
	"github.com/rs/zerolog/log"
)

// Rejection names the policy check that stopped an infection.
type Rejection string

const (
	RejectNone       Rejection = ""
	RejectUnresolved Rejection = "unresolved"
	RejectInfected   Rejection = "already_infected"
	RejectProtected  Rejection = "protected"
	RejectAirborne   Rejection = "airborne"
	RejectGameMode   Rejection = "game_mode"
	RejectCancelled  Rejection = "cancelled"
)

// Deps are the collaborators an Engine consumes. Effects and Sink may be nil.
type Deps struct {
	Clock      Clock
	Population PopulationView
	Proximity  ProximityIndex
	Effects    EffectApplier
	Sink       EventSink
}

// Engine applies Infect and Cure transitions to a State.
type Engine struct {
	cfg        Config
	state      *State
	clock      Clock
	population PopulationView
	proximity  ProximityIndex
	effects    EffectApplier
	sink       EventSink
}

// NewEngine builds an engine over a fresh State.
func NewEngine(cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Effects == nil {
		deps.Effects = noopEffects{}
	}
	if deps.Sink == nil {
		deps.Sink = noopSink{}
	}
	return &Engine{
		cfg:        cfg,
		state:      NewState(),
		clock:      deps.Clock,
		population: deps.Population,
		proximity:  deps.Proximity,
		effects:    deps.Effects,
		sink:       deps.Sink,
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Reconfigure swaps the live parameters. Existing timers keep their expiry.
func (e *Engine) Reconfigure(cfg Config) {
	e.cfg = cfg
}

func (e *Engine) State() *State {
	return e.state
}

func (e *Engine) Now() Timestamp {
	return e.clock.Now()
}

func (e *Engine) IsInfected(id EntityID) bool {
	return e.state.IsInfected(id, e.clock.Now())
}

func (e *Engine) IsProtected(id EntityID) bool {
	return e.state.IsProtected(id, e.clock.Now())
}

// InfectionExpiresAt returns 0 for ids that were never infected.
func (e *Engine) InfectionExpiresAt(id EntityID) Timestamp {
	return e.state.InfectedUntil(id)
}

// ProtectionExpiresAt returns now for ids without a protection entry.
func (e *Engine) ProtectionExpiresAt(id EntityID) Timestamp {
	return e.state.ProtectedUntil(id, e.clock.Now())
}

func (e *Engine) ProtectionRemaining(id EntityID) time.Duration {
	return e.state.ProtectionRemaining(id, e.clock.Now())
}

// Status reads every timer of id at one instant.
func (e *Engine) Status(id EntityID) Status {
	now := e.clock.Now()
	return Status{
		ID:                  id,
		Infected:            e.state.IsInfected(id, now),
		Protected:           e.state.IsProtected(id, now),
		InfectionExpiresAt:  e.state.InfectedUntil(id),
		ProtectionExpiresAt: e.state.ProtectedUntil(id, now),
		ProtectionRemaining: e.state.ProtectionRemaining(id, now),
	}
}

// Infect reports whether target became infected. Policy rejections return false and leave
// the state untouched.
func (e *Engine) Infect(target EntityID, origin *EntityID, cause InfectionCause) bool {
	return e.TryInfect(target, origin, cause) == RejectNone
}

// TryInfect is Infect with the rejecting check named.
func (e *Engine) TryInfect(target EntityID, origin *EntityID, cause InfectionCause) Rejection {
	reason := e.infect(target, origin, cause)
	if reason != RejectNone {
		observability.RecordInfectionRejected(string(cause), string(reason))
		log.Debug().
			Str("target", target.String()).
			Str("cause", string(cause)).
			Str("reason", string(reason)).
			Msg("contagion.Engine.Infect rejected")
		return reason
	}
	observability.RecordTransition("infect", string(cause))
	log.Debug().
		Str("target", target.String()).
		Str("cause", string(cause)).
		Int64("until", int64(e.state.InfectedUntil(target))).
		Msg("contagion.Engine.Infect applied")
	return RejectNone
}

func (e *Engine) infect(target EntityID, origin *EntityID, cause InfectionCause) Rejection {
	now := e.clock.Now()
	if e.state.IsInfected(target, now) {
		return RejectInfected
	}
	if e.state.IsProtected(target, now) {
		return RejectProtected
	}

	entity, ok := e.population.Resolve(target)
	if !ok {
		return RejectUnresolved
	}
	if !e.population.IsGrounded(entity) && !e.cfg.AllowInfectionInAir {
		return RejectAirborne
	}
	if e.population.GameModeExcluded(entity) {
		return RejectGameMode
	}

	attempt := NewInfectionAttempt(target, origin, cause)
	e.sink.PublishInfectionAttempt(attempt)
	if attempt.Cancelled() {
		return RejectCancelled
	}

	e.effects.ApplyInfectionEffects(entity)
	e.state.SetInfected(target, now.Add(e.cfg.InfectionDuration()))
	e.state.ClearProtected(target)
	return RejectNone
}

// Cure clears the infection of target. Every cause except death starts a protection window.
func (e *Engine) Cure(target EntityID, cause CureCause) {
	if cause.GrantsProtection() {
		e.state.SetProtected(target, e.clock.Now().Add(e.cfg.ProtectionDuration()))
	}
	e.state.ClearInfected(target)

	e.sink.PublishCured(Cured{Target: target, Cause: cause})

	if cause == CureCommand {
		if entity, ok := e.population.Resolve(target); ok {
			e.effects.RemoveInfectionEffects(entity)
		}
	}

	observability.RecordTransition("cure", string(cause))
	log.Debug().
		Str("target", target.String()).
		Str("cause", string(cause)).
		Msg("contagion.Engine.Cure applied")
}

// Forget drops both timers of id without publishing anything. Used when a member leaves.
func (e *Engine) Forget(id EntityID) {
	e.state.ClearInfected(id)
	e.state.ClearProtected(id)
}
