// Package service owns the standalone runtime.
//
// Ownership boundary:
// - component wiring (world, bus, engine, scheduler, listener, catalog, admin)
//
// - process lifecycle and signal shutdown
//
// - config reload
//
// Lifecycle order:
// - bootstrap -> serve (scheduler loop, admin HTTP, heartbeat) -> shutdown
//
// - reload swaps engine parameters on the scheduler loop, then restarts the sweep.
//
// Service does not own contagion state; the scheduler loop does.
package service
