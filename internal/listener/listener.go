// Package listener turns contagion events into chat messages, sounds and glow, and routes host
// world hooks (item consumption, death, quit) back into the engine.
//
// Event handlers and hooks run on the scheduler loop: the bus calls handlers from inside engine
// transitions, and hook callers go through contagion.Scheduler.Do.
package listener

import (
	"strconv"
	"sync/atomic"

	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/eventbus"
	"github.com/banarnia/infected/internal/messages"
	"github.com/banarnia/infected/internal/world"
	"github.com/rs/zerolog/log"
)

const (
	SoundInfected         = "ambient.cave"
	SoundCured            = "entity.player.levelup"
	SoundProtectionRanOut = "block.note_block.banjo"
	ItemMilkBucket        = "milk_bucket"
)

// Host is the part of the world the listener talks to.
type Host interface {
	Player(id world.PlayerID) (world.PlayerView, bool)
	Broadcast(msg string)
	Send(id world.PlayerID, msg string)
	PlaySound(id world.PlayerID, sound string)
	SetGlowing(id world.PlayerID, glowing bool)
	ClearEffects(id world.PlayerID)
}

type Listener struct {
	engine  *contagion.Engine
	host    Host
	catalog *messages.Catalog
	glow    atomic.Bool
}

func New(engine *contagion.Engine, host Host, catalog *messages.Catalog, glow bool) *Listener {
	l := &Listener{engine: engine, host: host, catalog: catalog}
	l.glow.Store(glow)
	return l
}

// SetGlow toggles glow for future infections.
func (l *Listener) SetGlow(enabled bool) {
	l.glow.Store(enabled)
}

func (l *Listener) GlowEnabled() bool {
	return l.glow.Load()
}

// Attach subscribes the listener to bus and returns a function that detaches it.
func (l *Listener) Attach(bus *eventbus.Bus) func() {
	subs := []eventbus.Subscription{
		bus.OnInfectionAttempt(eventbus.PriorityHigh, l.handleInfection),
		bus.OnCured(eventbus.PriorityNormal, l.handleCured),
		bus.OnProtectionExpired(eventbus.PriorityNormal, l.handleProtectionExpired),
	}
	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}

func (l *Listener) name(id world.PlayerID) string {
	if p, ok := l.host.Player(id); ok {
		return p.Name
	}
	return id.String()
}

func (l *Listener) handleInfection(evt *contagion.InfectionAttempt) {
	if evt.Cancelled() {
		return
	}
	var msg string
	if evt.HasOrigin() {
		msg = l.catalog.Render(messages.PlayerInfected, messages.Vars{
			"target": l.name(evt.Target),
			"player": l.name(*evt.Origin),
		})
	} else {
		msg = l.catalog.Render(messages.PlayerInfectedCommand, messages.Vars{
			"target": l.name(evt.Target),
		})
	}
	l.host.Broadcast(msg)
	l.host.PlaySound(evt.Target, SoundInfected)
	if l.glow.Load() {
		l.host.SetGlowing(evt.Target, true)
	}
}

func (l *Listener) handleCured(evt contagion.Cured) {
	l.host.Send(evt.Target, l.catalog.Render(messages.PlayerCured, nil))
	// glow follows the infection for every cause, death included
	l.host.SetGlowing(evt.Target, false)
	if !evt.Cause.GrantsProtection() {
		return
	}
	seconds := strconv.Itoa(l.engine.Config().ProtectionSeconds)
	l.host.Send(evt.Target, l.catalog.Render(messages.PlayerProtectionStarts, messages.Vars{"time": seconds}))
	l.host.PlaySound(evt.Target, SoundCured)
}

func (l *Listener) handleProtectionExpired(evt contagion.ProtectionExpired) {
	l.host.Send(evt.Target, l.catalog.Render(messages.PlayerProtectionRanOut, nil))
	l.host.PlaySound(evt.Target, SoundProtectionRanOut)
}

// ItemConsumed handles a player finishing an item. Milk clears every effect and cures an
// infection. It reports whether a cure happened.
func (l *Listener) ItemConsumed(id world.PlayerID, item string) bool {
	if item != ItemMilkBucket {
		return false
	}
	l.host.ClearEffects(id)
	if !l.engine.IsInfected(id) {
		return false
	}
	l.engine.Cure(id, contagion.CureItem)
	log.Debug().Str("target", id.String()).Msg("listener.Listener.ItemConsumed cured")
	return true
}

// Died cures an infected player without protection.
func (l *Listener) Died(id world.PlayerID) bool {
	if !l.engine.IsInfected(id) {
		return false
	}
	l.engine.Cure(id, contagion.CureDeath)
	return true
}

// Quit cures an infected player and drops both timers. It reports whether a cure happened.
func (l *Listener) Quit(id world.PlayerID) bool {
	cured := false
	if l.engine.IsInfected(id) {
		l.engine.Cure(id, contagion.CureCommand)
		cured = true
	}
	l.engine.Forget(id)
	return cured
}
