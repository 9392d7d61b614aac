// Package contagion owns infection and protection state.
//
// Ownership boundary:
// - infected-until and protected-until timers keyed by EntityID
//
// - transition policy (Infect, Cure)
//
// - the periodic sweep (expiry, proximity spread, protection expiry)
//
// Lifecycle order:
// - infect -> (sweep spreads) -> cure -> protected -> protection expired
//
// - death cures without protection.
//
// - leaving the population drops both timers without a cure event.
//
// Concurrency:
// - Engine and State are not goroutine-safe. All work runs on Scheduler.Run's goroutine;
// other goroutines submit work through Scheduler.Do.
//
// Contagion does not own entities, positions, effects or messages. Those are reached through
// PopulationView, ProximityIndex, EffectApplier and EventSink.
package contagion
