package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/banarnia/infected/internal/world"
	"gopkg.in/yaml.v3"
)

// yamlConfig accepts the plugin's config.yml layout, hyphenated keys included.
type yamlConfig struct {
	InfectionTimeSeconds    *int        `yaml:"infection-time-seconds"`
	ProtectionTimeSeconds   *int        `yaml:"protection-time-seconds"`
	InfectionCheckTimeTicks *int        `yaml:"infection-check-time-ticks"`
	InfectionRadius         *float64    `yaml:"infection-radius"`
	InfectionWhileInAir     *bool       `yaml:"infection-while-in-air"`
	GlowEnabled             *bool       `yaml:"glow-enabled"`
	Effects                 *effectList `yaml:"effects"`
	TickDuration            *string     `yaml:"tick-duration"`
	AdminListenAddr         *string     `yaml:"admin-listen-addr"`
	AdminToken              *string     `yaml:"admin-token"`
	AdminTLSCertFile        *string     `yaml:"admin-tls-cert-file"`
	AdminTLSKeyFile         *string     `yaml:"admin-tls-key-file"`
	CorsOrigins             []string    `yaml:"cors-origins"`
	Locale                  *string     `yaml:"locale"`
	MessagesPath            *string     `yaml:"messages-path"`
	HeartbeatInterval       *string     `yaml:"heartbeat-interval"`
}

// effectList decodes either a sequence of effects or the plugin's index-keyed mapping
// (effects: {0: {type: BLINDNESS, amplifier: 2}}), keeping document order.
type effectList []world.EffectSpec

func (l *effectList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var specs []world.EffectSpec
		if err := node.Decode(&specs); err != nil {
			return err
		}
		*l = specs
	case yaml.MappingNode:
		specs := make([]world.EffectSpec, 0, len(node.Content)/2)
		for i := 1; i < len(node.Content); i += 2 {
			var spec world.EffectSpec
			if err := node.Content[i].Decode(&spec); err != nil {
				return fmt.Errorf("effects.%s: %w", node.Content[i-1].Value, err)
			}
			specs = append(specs, spec)
		}
		*l = specs
	default:
		return fmt.Errorf("effects: line %d: expected list or mapping", node.Line)
	}
	return nil
}

func loadYAML(path string, cfg Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}

	if raw.InfectionTimeSeconds != nil {
		cfg.Contagion.InfectionSeconds = *raw.InfectionTimeSeconds
	}
	if raw.ProtectionTimeSeconds != nil {
		cfg.Contagion.ProtectionSeconds = *raw.ProtectionTimeSeconds
	}
	if raw.InfectionCheckTimeTicks != nil {
		cfg.Contagion.CheckPeriodTicks = *raw.InfectionCheckTimeTicks
	}
	if raw.InfectionRadius != nil {
		cfg.Contagion.InfectionRadius = *raw.InfectionRadius
	}
	if raw.InfectionWhileInAir != nil {
		cfg.Contagion.AllowInfectionInAir = *raw.InfectionWhileInAir
	}
	if raw.GlowEnabled != nil {
		cfg.GlowEnabled = *raw.GlowEnabled
	}
	if raw.Effects != nil {
		cfg.Effects = []world.EffectSpec(*raw.Effects)
	}
	if raw.TickDuration != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.TickDuration))
		if err != nil {
			return Settings{}, fmt.Errorf("parse tick-duration: %w", err)
		}
		cfg.TickDuration = d
	}
	if raw.AdminListenAddr != nil {
		cfg.AdminListenAddr = strings.TrimSpace(*raw.AdminListenAddr)
	}
	if raw.AdminToken != nil {
		cfg.AdminToken = strings.TrimSpace(*raw.AdminToken)
	}
	if raw.AdminTLSCertFile != nil {
		cfg.AdminTLSCertFile = strings.TrimSpace(*raw.AdminTLSCertFile)
	}
	if raw.AdminTLSKeyFile != nil {
		cfg.AdminTLSKeyFile = strings.TrimSpace(*raw.AdminTLSKeyFile)
	}
	if raw.CorsOrigins != nil {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if raw.Locale != nil {
		cfg.Locale = strings.TrimSpace(*raw.Locale)
	}
	if raw.MessagesPath != nil {
		cfg.MessagesPath = strings.TrimSpace(*raw.MessagesPath)
	}
	if raw.HeartbeatInterval != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.HeartbeatInterval))
		if err != nil {
			return Settings{}, fmt.Errorf("parse heartbeat-interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	return cfg, nil
}
