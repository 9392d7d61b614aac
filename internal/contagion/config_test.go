package contagion

import (
	"errors"
	"math"
	"testing"
)

func TestConfigValidateBoundsRadius(t *testing.T) {
	tests := []struct {
		name   string
		radius float64
		ok     bool
	}{
		{name: "default", radius: DefaultConfig().InfectionRadius, ok: true},
		{name: "zero", radius: 0, ok: true},
		{name: "max", radius: MaxInfectionRadius, ok: true},
		{name: "negative", radius: -1, ok: false},
		{name: "too large", radius: 1e9, ok: false},
		{name: "nan", radius: math.NaN(), ok: false},
		{name: "inf", radius: math.Inf(1), ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InfectionRadius = tc.radius
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected validate error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
