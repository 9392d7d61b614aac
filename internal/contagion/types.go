package contagion

import (
	"time"

	"github.com/google/uuid"
)

// EntityID identifies one population member.
type EntityID = uuid.UUID

// Timestamp is wall time in milliseconds since the Unix epoch.
type Timestamp int64

// TimestampOf converts a time.Time to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts the timestamp back to time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts))
}

// Add returns ts shifted by d, truncated to milliseconds.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return ts + Timestamp(d.Milliseconds())
}

// InfectionCause describes why an infection was requested.
type InfectionCause string

const (
	CauseCommand   InfectionCause = "command"
	CauseProximity InfectionCause = "proximity"
)

// CureCause describes why an infection ended.
type CureCause string

const (
	CureExpired CureCause = "expired"
	CureCommand CureCause = "command"
	CureItem    CureCause = "item"
	CureDeath   CureCause = "death"
)

// GrantsProtection reports whether a cure with this cause starts a protection window.
func (c CureCause) GrantsProtection() bool {
	return c != CureDeath
}

// Status is a point-in-time view of one entity's timers.
type Status struct {
	ID                  EntityID      `json:"id"`
	Infected            bool          `json:"infected"`
	Protected           bool          `json:"protected"`
	InfectionExpiresAt  Timestamp     `json:"infection_expires_at"`
	ProtectionExpiresAt Timestamp     `json:"protection_expires_at"`
	ProtectionRemaining time.Duration `json:"protection_remaining"`
}
