package world

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrUnknownEffect = errors.New("world: unknown effect type")

// EffectSpec is one configured effect before validation.
type EffectSpec struct {
	Type      string `toml:"type" yaml:"type" json:"type"`
	Amplifier int    `toml:"amplifier" yaml:"amplifier" json:"amplifier"`
}

// PotionEffect is an effect active on a player.
type PotionEffect struct {
	Type      string        `json:"type"`
	Amplifier int           `json:"amplifier"`
	Duration  time.Duration `json:"duration"`
}

var knownEffects = map[string]struct{}{
	"absorption":      {},
	"bad_omen":        {},
	"blindness":       {},
	"confusion":       {},
	"darkness":        {},
	"glowing":         {},
	"hunger":          {},
	"levitation":      {},
	"mining_fatigue":  {},
	"nausea":          {},
	"poison":          {},
	"slow_falling":    {},
	"slowness":        {},
	"unluck":          {},
	"weakness":        {},
	"wither":          {},
	"jump_boost":      {},
	"speed":           {},
	"fire_resistance": {},
}

// KnownEffectTypes lists the accepted effect names, sorted.
func KnownEffectTypes() []string {
	out := make([]string, 0, len(knownEffects))
	for name := range knownEffects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NormalizeEffectType lower-cases and maps legacy upper-case names (BLINDNESS, SLOW) to ours.
func NormalizeEffectType(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.ReplaceAll(name, " ", "_")
	switch name {
	case "slow":
		return "slowness"
	case "slow_digging":
		return "mining_fatigue"
	case "jump":
		return "jump_boost"
	}
	return name
}

// BuildEffects validates specs and gives each effect the infection duration. Invalid entries
// are returned as errors and left out; the remaining effects are still usable.
func BuildEffects(specs []EffectSpec, duration time.Duration) ([]PotionEffect, []error) {
	out := make([]PotionEffect, 0, len(specs))
	var skipped []error
	for i, spec := range specs {
		name := NormalizeEffectType(spec.Type)
		if _, ok := knownEffects[name]; !ok {
			skipped = append(skipped, fmt.Errorf("%w: effects[%d] %q", ErrUnknownEffect, i, spec.Type))
			continue
		}
		amp := spec.Amplifier
		if amp < 0 {
			amp = 0
		}
		out = append(out, PotionEffect{Type: name, Amplifier: amp, Duration: duration})
	}
	return out, skipped
}

// DefaultEffects are the effects written into a fresh config.
func DefaultEffects() []EffectSpec {
	return []EffectSpec{
		{Type: "blindness", Amplifier: 2},
		{Type: "wither", Amplifier: 2},
	}
}
