package contagion

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("contagion: invalid config")

// TicksPerSecond is the host's nominal tick rate; CheckPeriodTicks is expressed in it.
const TicksPerSecond = 20

// MaxInfectionRadius bounds the proximity query run per infected entity per sweep.
const MaxInfectionRadius = 512.0

// Config holds the transition and sweep parameters.
type Config struct {
	InfectionSeconds    int
	ProtectionSeconds   int
	CheckPeriodTicks    int
	InfectionRadius     float64
	AllowInfectionInAir bool
}

// DefaultConfig mirrors the shipped config.yml defaults.
func DefaultConfig() Config {
	return Config{
		InfectionSeconds:    60,
		ProtectionSeconds:   30,
		CheckPeriodTicks:    20,
		InfectionRadius:     5.0,
		AllowInfectionInAir: false,
	}
}

// Validate rejects values that would make the sweep or the timers meaningless.
func (c Config) Validate() error {
	if c.InfectionSeconds < 0 {
		return fmt.Errorf("%w: infection seconds %d", ErrInvalidConfig, c.InfectionSeconds)
	}
	if c.ProtectionSeconds < 0 {
		return fmt.Errorf("%w: protection seconds %d", ErrInvalidConfig, c.ProtectionSeconds)
	}
	if c.CheckPeriodTicks <= 0 {
		return fmt.Errorf("%w: check period ticks %d", ErrInvalidConfig, c.CheckPeriodTicks)
	}
	if !(c.InfectionRadius >= 0 && c.InfectionRadius <= MaxInfectionRadius) {
		return fmt.Errorf("%w: infection radius %v (want 0..%v)", ErrInvalidConfig, c.InfectionRadius, MaxInfectionRadius)
	}
	return nil
}

func (c Config) InfectionDuration() time.Duration {
	return time.Duration(c.InfectionSeconds) * time.Second
}

func (c Config) ProtectionDuration() time.Duration {
	return time.Duration(c.ProtectionSeconds) * time.Second
}

// CheckPeriod converts CheckPeriodTicks to wall time for a given tick length.
func (c Config) CheckPeriod(tick time.Duration) time.Duration {
	return time.Duration(c.CheckPeriodTicks) * tick
}
