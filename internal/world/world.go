// Package world is an in-memory game population: players, positions, game modes, potion
// effects, chat and sounds. It serves the contagion core as PopulationView, ProximityIndex
// and EffectApplier.
package world

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banarnia/infected/internal/contagion"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrPlayerExists   = errors.New("world: player already online")
	ErrPlayerNotFound = errors.New("world: player not found")
	ErrInvalidName    = errors.New("world: invalid player name")
	ErrInvalidMode    = errors.New("world: invalid game mode")
)

type PlayerID = contagion.EntityID

type GameMode string

const (
	ModeSurvival  GameMode = "survival"
	ModeAdventure GameMode = "adventure"
	ModeCreative  GameMode = "creative"
	ModeSpectator GameMode = "spectator"
)

// ParseGameMode accepts the mode names case-insensitively; blank means survival.
func ParseGameMode(raw string) (GameMode, error) {
	switch GameMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSurvival:
		return ModeSurvival, nil
	case ModeAdventure:
		return ModeAdventure, nil
	case ModeCreative:
		return ModeCreative, nil
	case ModeSpectator:
		return ModeSpectator, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

const inboxLimit = 32

// Player is the handle returned by Resolve. Its mutable fields are read through World.
type Player struct {
	id       PlayerID
	name     string
	pos      Vec3
	onGround bool
	mode     GameMode
	online   bool
	glowing  bool
	effects  map[string]activeEffect
	inbox    []string
	sounds   []string
}

func (p *Player) ID() contagion.EntityID {
	return p.id
}

type activeEffect struct {
	effect PotionEffect
	until  time.Time
}

// PlayerView is a copy of a player's state.
type PlayerView struct {
	ID       PlayerID       `json:"id"`
	Name     string         `json:"name"`
	Position Vec3           `json:"position"`
	OnGround bool           `json:"on_ground"`
	Mode     GameMode       `json:"mode"`
	Online   bool           `json:"online"`
	Glowing  bool           `json:"glowing"`
	Effects  []PotionEffect `json:"effects"`
	Inbox    []string       `json:"inbox"`
	Sounds   []string       `json:"sounds"`
}

// JoinRequest describes a player entering the world. A zero ID gets a random one.
type JoinRequest struct {
	ID       PlayerID
	Name     string
	Position Vec3
	OnGround bool
	Mode     GameMode
}

// Config tunes the world. Now defaults to time.Now.
type Config struct {
	CellSize      float64
	ExcludedModes []GameMode
	Now           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		CellSize:      16,
		ExcludedModes: []GameMode{ModeCreative, ModeSpectator},
	}
}

// World is safe for concurrent use.
type World struct {
	mu       sync.RWMutex
	players  map[PlayerID]*Player
	byName   map[string]PlayerID
	grid     *grid
	excluded map[GameMode]struct{}
	effects  []PotionEffect
	now      func() time.Time
}

func New(cfg Config) *World {
	excluded := make(map[GameMode]struct{}, len(cfg.ExcludedModes))
	for _, m := range cfg.ExcludedModes {
		excluded[m] = struct{}{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &World{
		players:  make(map[PlayerID]*Player),
		byName:   make(map[string]PlayerID),
		grid:     newGrid(cfg.CellSize),
		excluded: excluded,
		now:      now,
	}
}

// SetInfectionEffects replaces the effects applied on infection.
func (w *World) SetInfectionEffects(effects []PotionEffect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.effects = slices.Clone(effects)
}

// InfectionEffects returns the configured infection effects.
func (w *World) InfectionEffects() []PotionEffect {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.effects)
}

// Join adds a player or brings an offline one back online at the requested position.
func (w *World) Join(req JoinRequest) (PlayerView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return PlayerView{}, ErrInvalidName
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeSurvival
	}
	id := req.ID
	if id == uuid.Nil {
		if known, ok := w.lookupName(name); ok {
			id = known
		} else {
			id = uuid.New()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	key := strings.ToLower(name)
	if other, ok := w.byName[key]; ok && other != id && w.players[other].online {
		return PlayerView{}, fmt.Errorf("%w: name %q", ErrPlayerExists, name)
	}
	if p, ok := w.players[id]; ok {
		if p.online {
			return PlayerView{}, fmt.Errorf("%w: %s", ErrPlayerExists, id)
		}
		if old := strings.ToLower(p.name); old != key && w.byName[old] == id {
			delete(w.byName, old)
		}
		p.name = name
		p.pos = req.Position
		p.onGround = req.OnGround
		p.mode = mode
		p.online = true
		w.byName[key] = id
		w.grid.insert(id, p.pos)
		return p.view(w.now()), nil
	}

	p := &Player{
		id:       id,
		name:     name,
		pos:      req.Position,
		onGround: req.OnGround,
		mode:     mode,
		online:   true,
		effects:  make(map[string]activeEffect),
	}
	w.players[id] = p
	w.byName[key] = id
	w.grid.insert(id, p.pos)
	log.Debug().Str("id", id.String()).Str("name", name).Msg("world.World.Join")
	return p.view(w.now()), nil
}

func (w *World) lookupName(name string) (PlayerID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.byName[strings.ToLower(name)]
	return id, ok
}

// Quit takes a player offline. The record stays resolvable but reports offline.
func (w *World) Quit(id PlayerID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok || !p.online {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	p.online = false
	p.glowing = false
	w.grid.remove(id, p.pos)
	return nil
}

// Remove deletes a player record entirely.
func (w *World) Remove(id PlayerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return
	}
	if p.online {
		w.grid.remove(id, p.pos)
	}
	if w.byName[strings.ToLower(p.name)] == id {
		delete(w.byName, strings.ToLower(p.name))
	}
	delete(w.players, id)
}

// Move updates position and ground contact of an online player.
func (w *World) Move(id PlayerID, pos Vec3, onGround bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok || !p.online {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	w.grid.move(id, p.pos, pos)
	p.pos = pos
	p.onGround = onGround
	return nil
}

func (w *World) SetGameMode(id PlayerID, mode GameMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	p.mode = mode
	return nil
}

func (w *World) SetGlowing(id PlayerID, glowing bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok {
		p.glowing = glowing
	}
}

// Player returns a copy of one player's state.
func (w *World) Player(id PlayerID) (PlayerView, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	if !ok {
		return PlayerView{}, false
	}
	return p.view(w.now()), true
}

// PlayerByName resolves a name case-insensitively.
func (w *World) PlayerByName(name string) (PlayerView, bool) {
	id, ok := w.lookupName(strings.TrimSpace(name))
	if !ok {
		return PlayerView{}, false
	}
	return w.Player(id)
}

// Online lists online players sorted by name.
func (w *World) Online() []PlayerView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	now := w.now()
	out := make([]PlayerView, 0, len(w.players))
	for _, p := range w.players {
		if p.online {
			out = append(out, p.view(now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (w *World) OnlineCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, p := range w.players {
		if p.online {
			n++
		}
	}
	return n
}

// Resolve implements contagion.PopulationView.
func (w *World) Resolve(id contagion.EntityID) (contagion.Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (w *World) IsOnline(e contagion.Entity) bool {
	return w.read(e, func(p *Player) bool { return p.online })
}

func (w *World) IsGrounded(e contagion.Entity) bool {
	return w.read(e, func(p *Player) bool { return p.onGround })
}

func (w *World) GameModeExcluded(e contagion.Entity) bool {
	return w.read(e, func(p *Player) bool {
		_, excluded := w.excluded[p.mode]
		return excluded
	})
}

func (w *World) read(e contagion.Entity, fn func(*Player) bool) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[e.ID()]
	if !ok {
		return false
	}
	return fn(p)
}

// Nearby implements contagion.ProximityIndex with a cube of half-size radius.
func (w *World) Nearby(e contagion.Entity, radius float64) []contagion.EntityID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	self, ok := w.players[e.ID()]
	if !ok || !self.online {
		return nil
	}
	box := BoxAround(self.pos, radius)
	var out []contagion.EntityID
	w.grid.candidates(box, func(id PlayerID) {
		if id == self.id {
			return
		}
		other := w.players[id]
		if other == nil || !other.online || !box.Contains(other.pos) {
			return
		}
		out = append(out, id)
	})
	return out
}

// ApplyInfectionEffects implements contagion.EffectApplier.
func (w *World) ApplyInfectionEffects(e contagion.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[e.ID()]
	if !ok {
		return
	}
	until := w.now()
	for _, eff := range w.effects {
		p.effects[eff.Type] = activeEffect{effect: eff, until: until.Add(eff.Duration)}
	}
}

func (w *World) RemoveInfectionEffects(e contagion.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[e.ID()]
	if !ok {
		return
	}
	for _, eff := range w.effects {
		delete(p.effects, eff.Type)
	}
}

// ClearEffects drops every active effect, as drinking milk does.
func (w *World) ClearEffects(id PlayerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok {
		clear(p.effects)
	}
}

// Broadcast delivers msg to every online player.
func (w *World) Broadcast(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.players {
		if p.online {
			p.deliver(msg)
		}
	}
	log.Info().Str("msg", msg).Msg("world.World.Broadcast")
}

// Send delivers msg to one player.
func (w *World) Send(id PlayerID, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok && p.online {
		p.deliver(msg)
	}
}

// PlaySound records a sound played at a player.
func (w *World) PlaySound(id PlayerID, sound string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok && p.online {
		p.sounds = appendCapped(p.sounds, sound)
	}
}

func (p *Player) deliver(msg string) {
	p.inbox = appendCapped(p.inbox, msg)
}

func appendCapped(list []string, v string) []string {
	list = append(list, v)
	if len(list) > inboxLimit {
		list = slices.Delete(list, 0, len(list)-inboxLimit)
	}
	return list
}

// view drops effects that ran out before now and reports the remaining duration of the rest.
func (p *Player) view(now time.Time) PlayerView {
	effects := make([]PotionEffect, 0, len(p.effects))
	for _, active := range p.effects {
		left := active.until.Sub(now)
		if left <= 0 {
			continue
		}
		eff := active.effect
		eff.Duration = left
		effects = append(effects, eff)
	}
	sort.Slice(effects, func(i, j int) bool { return effects[i].Type < effects[j].Type })
	return PlayerView{
		ID:       p.id,
		Name:     p.name,
		Position: p.pos,
		OnGround: p.onGround,
		Mode:     p.mode,
		Online:   p.online,
		Glowing:  p.glowing,
		Effects:  effects,
		Inbox:    slices.Clone(p.inbox),
		Sounds:   slices.Clone(p.sounds),
	}
}

// EffectDuration returns the remaining duration of an active effect.
func (v PlayerView) EffectDuration(effect string) (time.Duration, bool) {
	for _, eff := range v.Effects {
		if eff.Type == effect {
			return eff.Duration, true
		}
	}
	return 0, false
}
