package contagion

// InfectionAttempt is published before an infection is applied. A subscriber that calls
// Cancel aborts the infection.
type InfectionAttempt struct {
	Target    EntityID
	Origin    *EntityID
	Cause     InfectionCause
	cancelled bool
}

// NewInfectionAttempt builds an attempt for target. origin is nil for command infections.
func NewInfectionAttempt(target EntityID, origin *EntityID, cause InfectionCause) *InfectionAttempt {
	return &InfectionAttempt{Target: target, Origin: origin, Cause: cause}
}

func (e *InfectionAttempt) Cancel() {
	e.cancelled = true
}

func (e *InfectionAttempt) SetCancelled(v bool) {
	e.cancelled = v
}

func (e *InfectionAttempt) Cancelled() bool {
	return e.cancelled
}

// HasOrigin reports whether the infection spread from another member.
func (e *InfectionAttempt) HasOrigin() bool {
	return e.Origin != nil
}

// Cured is published after an infection was cleared.
type Cured struct {
	Target EntityID
	Cause  CureCause
}

// ProtectionExpired is published by the sweep when a protection window lapses.
type ProtectionExpired struct {
	Target EntityID
}
