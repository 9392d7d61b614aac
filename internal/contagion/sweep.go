package contagion

import (
	"context"
	"time"

	"github.com/banarnia/infected/internal/observability"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/banarnia/infected/internal/contagion")

// SweepReport counts what one sweep pass did.
type SweepReport struct {
	InfectedChecked   int
	InfectedPruned    int
	Expired           int
	SpreadAttempts    int
	Spread            int
	ProtectedChecked  int
	ProtectedPruned   int
	ProtectionExpired int
	Duration          time.Duration
}

// Sweep runs one pass over both timer maps: expire or spread infections, then expire
// protection. It must run on the goroutine that owns the engine.
func (e *Engine) Sweep(ctx context.Context) SweepReport {
	_, span := tracer.Start(ctx, "contagion.sweep")
	defer span.End()

	start := time.Now()
	var report SweepReport
	e.sweepInfected(&report)
	e.sweepProtected(&report)
	report.Duration = time.Since(start)

	infected, protected := e.state.Counts()
	observability.RecordSweep(report.Duration, infected, protected)
	span.SetAttributes(
		attribute.Int("infected.checked", report.InfectedChecked),
		attribute.Int("infected.expired", report.Expired),
		attribute.Int("spread.attempts", report.SpreadAttempts),
		attribute.Int("spread.applied", report.Spread),
		attribute.Int("protected.expired", report.ProtectionExpired),
	)
	if report.Spread > 0 || report.Expired > 0 || report.ProtectionExpired > 0 {
		span.AddEvent("transitions", trace.WithAttributes(
			attribute.Int("tracked.infected", infected),
			attribute.Int("tracked.protected", protected),
		))
	}
	return report
}

func (e *Engine) sweepInfected(report *SweepReport) {
	for _, id := range e.state.SnapshotInfected() {
		// a subscriber earlier in this pass may have forgotten id
		if !e.state.HasInfectedEntry(id) {
			continue
		}
		report.InfectedChecked++

		entity, ok := e.population.Resolve(id)
		if !ok || !e.population.IsOnline(entity) {
			e.state.ClearInfected(id)
			report.InfectedPruned++
			log.Debug().Str("id", id.String()).Msg("contagion.Engine.sweep pruned offline infected")
			continue
		}

		if !e.IsInfected(id) {
			e.Cure(id, CureExpired)
			report.Expired++
			continue
		}

		origin := id
		for _, neighborID := range e.proximity.Nearby(entity, e.cfg.InfectionRadius) {
			if neighborID == id {
				continue
			}
			neighbor, ok := e.population.Resolve(neighborID)
			if !ok || !e.population.IsOnline(neighbor) {
				continue
			}
			if e.IsInfected(neighborID) {
				continue
			}
			report.SpreadAttempts++
			if e.Infect(neighborID, &origin, CauseProximity) {
				report.Spread++
			}
		}
	}
}

func (e *Engine) sweepProtected(report *SweepReport) {
	for _, id := range e.state.SnapshotProtected() {
		if !e.state.HasProtectedEntry(id) {
			continue
		}
		report.ProtectedChecked++

		entity, ok := e.population.Resolve(id)
		if !ok || !e.population.IsOnline(entity) {
			e.state.ClearProtected(id)
			report.ProtectedPruned++
			continue
		}

		if e.IsProtected(id) {
			continue
		}

		e.sink.PublishProtectionExpired(ProtectionExpired{Target: id})
		e.state.ClearProtected(id)
		report.ProtectionExpired++
	}
}
