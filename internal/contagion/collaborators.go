package contagion

// Entity is a resolved, live population member.
type Entity interface {
	ID() EntityID
}

// PopulationView resolves ids to live members and answers eligibility questions.
type PopulationView interface {
	Resolve(id EntityID) (Entity, bool)
	IsOnline(e Entity) bool
	IsGrounded(e Entity) bool
	GameModeExcluded(e Entity) bool
}

// ProximityIndex returns the members near an entity, excluding the entity itself.
type ProximityIndex interface {
	Nearby(e Entity, radius float64) []EntityID
}

// EffectApplier applies and strips the visual/status effects of an infection.
type EffectApplier interface {
	ApplyInfectionEffects(e Entity)
	RemoveInfectionEffects(e Entity)
}

// EventSink publishes transition notifications. PublishInfectionAttempt returns after every
// subscriber ran; subscribers may cancel the attempt.
type EventSink interface {
	PublishInfectionAttempt(evt *InfectionAttempt)
	PublishCured(evt Cured)
	PublishProtectionExpired(evt ProtectionExpired)
}

type noopEffects struct{}

func (noopEffects) ApplyInfectionEffects(Entity)  {}
func (noopEffects) RemoveInfectionEffects(Entity) {}

type noopSink struct{}

func (noopSink) PublishInfectionAttempt(*InfectionAttempt)  {}
func (noopSink) PublishCured(Cured)                         {}
func (noopSink) PublishProtectionExpired(ProtectionExpired) {}
