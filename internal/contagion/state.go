package contagion

import (
	"bytes"
	"slices"
	"time"
)

// State holds the infected-until and protected-until timers.
type State struct {
	infectedUntil  map[EntityID]Timestamp
	protectedUntil map[EntityID]Timestamp
}

func NewState() *State {
	return &State{
		infectedUntil:  make(map[EntityID]Timestamp),
		protectedUntil: make(map[EntityID]Timestamp),
	}
}

// InfectedUntil returns the infection expiry, or 0 when id was never infected.
func (s *State) InfectedUntil(id EntityID) Timestamp {
	return s.infectedUntil[id]
}

// ProtectedUntil returns the protection expiry, or now when id has no protection entry.
// Defaulting to now keeps remaining protection at zero instead of negative.
func (s *State) ProtectedUntil(id EntityID, now Timestamp) Timestamp {
	ts, ok := s.protectedUntil[id]
	if !ok {
		return now
	}
	return ts
}

func (s *State) IsInfected(id EntityID, now Timestamp) bool {
	return s.InfectedUntil(id) > now
}

func (s *State) IsProtected(id EntityID, now Timestamp) bool {
	return s.ProtectedUntil(id, now)-now > 0
}

// ProtectionRemaining is clamped at zero.
func (s *State) ProtectionRemaining(id EntityID, now Timestamp) time.Duration {
	left := s.ProtectedUntil(id, now) - now
	if left < 0 {
		return 0
	}
	return time.Duration(left) * time.Millisecond
}

func (s *State) SetInfected(id EntityID, until Timestamp) {
	s.infectedUntil[id] = until
}

func (s *State) ClearInfected(id EntityID) {
	delete(s.infectedUntil, id)
}

func (s *State) SetProtected(id EntityID, until Timestamp) {
	s.protectedUntil[id] = until
}

func (s *State) ClearProtected(id EntityID) {
	delete(s.protectedUntil, id)
}

// HasInfectedEntry reports whether id has an infection timer, expired or not.
func (s *State) HasInfectedEntry(id EntityID) bool {
	_, ok := s.infectedUntil[id]
	return ok
}

// HasProtectedEntry reports whether id has a protection timer, expired or not.
func (s *State) HasProtectedEntry(id EntityID) bool {
	_, ok := s.protectedUntil[id]
	return ok
}

// SnapshotInfected returns the ids with an infection entry, sorted.
func (s *State) SnapshotInfected() []EntityID {
	return sortedKeys(s.infectedUntil)
}

// SnapshotProtected returns the ids with a protection entry, sorted.
func (s *State) SnapshotProtected() []EntityID {
	return sortedKeys(s.protectedUntil)
}

// Counts returns the number of infection and protection entries.
func (s *State) Counts() (infected, protected int) {
	return len(s.infectedUntil), len(s.protectedUntil)
}

func sortedKeys(m map[EntityID]Timestamp) []EntityID {
	out := make([]EntityID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b EntityID) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}
