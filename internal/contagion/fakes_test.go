package contagion

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

type manualClock struct {
	mu  sync.Mutex
	now Timestamp
}

func newManualClock(start Timestamp) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(ms int64) {
	c.mu.Lock()
	c.now += Timestamp(ms)
	c.mu.Unlock()
}

type fakeEntity struct {
	id       EntityID
	online   bool
	grounded bool
	excluded bool
	neighbor []EntityID
}

func (e *fakeEntity) ID() EntityID { return e.id }

// fakeWorld implements PopulationView, ProximityIndex and EffectApplier.
type fakeWorld struct {
	entities map[EntityID]*fakeEntity
	applied  map[EntityID]int
	removed  map[EntityID]int
	radii    []float64
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		entities: make(map[EntityID]*fakeEntity),
		applied:  make(map[EntityID]int),
		removed:  make(map[EntityID]int),
	}
}

func (w *fakeWorld) join() *fakeEntity {
	e := &fakeEntity{id: uuid.New(), online: true, grounded: true}
	w.entities[e.id] = e
	return e
}

func (w *fakeWorld) link(a, b *fakeEntity) {
	a.neighbor = append(a.neighbor, b.id)
	b.neighbor = append(b.neighbor, a.id)
}

func (w *fakeWorld) Resolve(id EntityID) (Entity, bool) {
	e, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	return e, true
}

func (w *fakeWorld) IsOnline(e Entity) bool         { return e.(*fakeEntity).online }
func (w *fakeWorld) IsGrounded(e Entity) bool       { return e.(*fakeEntity).grounded }
func (w *fakeWorld) GameModeExcluded(e Entity) bool { return e.(*fakeEntity).excluded }

func (w *fakeWorld) Nearby(e Entity, radius float64) []EntityID {
	w.radii = append(w.radii, radius)
	return append([]EntityID(nil), e.(*fakeEntity).neighbor...)
}

func (w *fakeWorld) ApplyInfectionEffects(e Entity)  { w.applied[e.ID()]++ }
func (w *fakeWorld) RemoveInfectionEffects(e Entity) { w.removed[e.ID()]++ }

type recordingSink struct {
	attempts  []InfectionAttempt
	cured     []Cured
	expired   []ProtectionExpired
	onAttempt func(*InfectionAttempt)
	onCured   func(Cured)
}

func (s *recordingSink) PublishInfectionAttempt(evt *InfectionAttempt) {
	if s.onAttempt != nil {
		s.onAttempt(evt)
	}
	s.attempts = append(s.attempts, *evt)
}

func (s *recordingSink) PublishCured(evt Cured) {
	if s.onCured != nil {
		s.onCured(evt)
	}
	s.cured = append(s.cured, evt)
}

func (s *recordingSink) PublishProtectionExpired(evt ProtectionExpired) {
	s.expired = append(s.expired, evt)
}

func (s *recordingSink) attemptsFor(id EntityID) int {
	n := 0
	for _, a := range s.attempts {
		if a.Target == id {
			n++
		}
	}
	return n
}

type fixture struct {
	clock  *manualClock
	world  *fakeWorld
	sink   *recordingSink
	engine *Engine
}

const startMillis = Timestamp(1_700_000_000_000)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		clock: newManualClock(startMillis),
		world: newFakeWorld(),
		sink:  &recordingSink{},
	}
	f.engine = NewEngine(cfg, Deps{
		Clock:      f.clock,
		Population: f.world,
		Proximity:  f.world,
		Effects:    f.world,
		Sink:       f.sink,
	})
	return f
}

func (f *fixture) assertExclusive(t *testing.T, ids ...EntityID) {
	t.Helper()
	for _, id := range ids {
		if f.engine.IsInfected(id) && f.engine.IsProtected(id) {
			t.Fatalf("entity %s is both infected and protected", id)
		}
	}
}
