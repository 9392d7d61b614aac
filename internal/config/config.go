// Package config loads service settings from a TOML or YAML file and INFECTED_* environment
// variables, in that order, on top of Default.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/world"
	"github.com/caarlos0/env/v11"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrInvalidSettings   = errors.New("config: invalid settings")
)

// Settings is everything a running service can be configured with.
type Settings struct {
	Contagion         contagion.Config
	GlowEnabled       bool
	Effects           []world.EffectSpec
	TickDuration      time.Duration
	AdminListenAddr   string
	AdminToken        string
	AdminTLSCertFile  string
	AdminTLSKeyFile   string
	CorsOrigins       []string
	Locale            string
	MessagesPath      string
	HeartbeatInterval time.Duration
}

func Default() Settings {
	return Settings{
		Contagion:         contagion.DefaultConfig(),
		GlowEnabled:       true,
		Effects:           world.DefaultEffects(),
		TickDuration:      time.Second / contagion.TicksPerSecond,
		AdminListenAddr:   "127.0.0.1:7020",
		CorsOrigins:       []string{"http://localhost:3000"},
		Locale:            "en-US",
		MessagesPath:      "",
		HeartbeatInterval: 30 * time.Second,
	}
}

// CheckPeriod is the sweep period in wall time.
func (s Settings) CheckPeriod() time.Duration {
	return s.Contagion.CheckPeriod(s.TickDuration)
}

func (s Settings) Validate() error {
	if err := s.Contagion.Validate(); err != nil {
		return err
	}
	if s.TickDuration <= 0 {
		return fmt.Errorf("%w: tick_duration %v", ErrInvalidSettings, s.TickDuration)
	}
	if s.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat_interval %v", ErrInvalidSettings, s.HeartbeatInterval)
	}
	if (s.AdminTLSCertFile == "") != (s.AdminTLSKeyFile == "") {
		return fmt.Errorf("%w: admin tls needs both cert and key files", ErrInvalidSettings)
	}
	return nil
}

// Load reads path (if not empty) over Default, applies the process environment and validates.
func Load(path string) (Settings, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		var err error
		if cfg, err = LoadFile(path, cfg); err != nil {
			return Settings{}, err
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return Settings{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// LoadFile overlays the keys present in path onto base. The format follows the extension.
// A relative messages_path set by the file is resolved against the file's directory.
func LoadFile(path string, base Settings) (Settings, error) {
	var (
		cfg Settings
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = loadTOML(path, base)
	case ".yml", ".yaml":
		cfg, err = loadYAML(path, base)
	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return Settings{}, err
	}
	if cfg.MessagesPath != base.MessagesPath && cfg.MessagesPath != "" && !filepath.IsAbs(cfg.MessagesPath) {
		cfg.MessagesPath = filepath.Join(filepath.Dir(path), cfg.MessagesPath)
	}
	return cfg, nil
}

type fileConfig struct {
	InfectionTimeSeconds    int                `toml:"infection_time_seconds"`
	ProtectionTimeSeconds   int                `toml:"protection_time_seconds"`
	InfectionCheckTimeTicks int                `toml:"infection_check_time_ticks"`
	InfectionRadius         float64            `toml:"infection_radius"`
	InfectionWhileInAir     bool               `toml:"infection_while_in_air"`
	GlowEnabled             bool               `toml:"glow_enabled"`
	Effects                 []world.EffectSpec `toml:"effects"`
	TickDuration            string             `toml:"tick_duration"`
	AdminListenAddr         string             `toml:"admin_listen_addr"`
	AdminToken              string             `toml:"admin_token"`
	AdminTLSCertFile        string             `toml:"admin_tls_cert_file"`
	AdminTLSKeyFile         string             `toml:"admin_tls_key_file"`
	CorsOrigins             []string           `toml:"cors_origins"`
	Locale                  string             `toml:"locale"`
	MessagesPath            string             `toml:"messages_path"`
	HeartbeatInterval       string             `toml:"heartbeat_interval"`
}

func loadTOML(path string, cfg Settings) (Settings, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("infection_time_seconds") {
		cfg.Contagion.InfectionSeconds = raw.InfectionTimeSeconds
	}
	if meta.IsDefined("protection_time_seconds") {
		cfg.Contagion.ProtectionSeconds = raw.ProtectionTimeSeconds
	}
	if meta.IsDefined("infection_check_time_ticks") {
		cfg.Contagion.CheckPeriodTicks = raw.InfectionCheckTimeTicks
	}
	if meta.IsDefined("infection_radius") {
		cfg.Contagion.InfectionRadius = raw.InfectionRadius
	}
	if meta.IsDefined("infection_while_in_air") {
		cfg.Contagion.AllowInfectionInAir = raw.InfectionWhileInAir
	}
	if meta.IsDefined("glow_enabled") {
		cfg.GlowEnabled = raw.GlowEnabled
	}
	if meta.IsDefined("effects") {
		cfg.Effects = raw.Effects
	}
	if meta.IsDefined("tick_duration") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TickDuration))
		if err != nil {
			return Settings{}, fmt.Errorf("parse tick_duration: %w", err)
		}
		cfg.TickDuration = d
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("admin_tls_cert_file") {
		cfg.AdminTLSCertFile = strings.TrimSpace(raw.AdminTLSCertFile)
	}
	if meta.IsDefined("admin_tls_key_file") {
		cfg.AdminTLSKeyFile = strings.TrimSpace(raw.AdminTLSKeyFile)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("locale") {
		cfg.Locale = strings.TrimSpace(raw.Locale)
	}
	if meta.IsDefined("messages_path") {
		cfg.MessagesPath = strings.TrimSpace(raw.MessagesPath)
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return Settings{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	return cfg, nil
}

// envConfig fields are pointers so unset variables leave the file values alone.
type envConfig struct {
	InfectionSeconds  *int           `env:"INFECTED_INFECTION_TIME_SECONDS"`
	ProtectionSeconds *int           `env:"INFECTED_PROTECTION_TIME_SECONDS"`
	CheckTicks        *int           `env:"INFECTED_INFECTION_CHECK_TIME_TICKS"`
	Radius            *float64       `env:"INFECTED_INFECTION_RADIUS"`
	InAir             *bool          `env:"INFECTED_INFECTION_WHILE_IN_AIR"`
	Glow              *bool          `env:"INFECTED_GLOW_ENABLED"`
	TickDuration      *time.Duration `env:"INFECTED_TICK_DURATION"`
	AdminListenAddr   *string        `env:"INFECTED_ADMIN_LISTEN_ADDR"`
	AdminToken        *string        `env:"INFECTED_ADMIN_TOKEN"`
	AdminTLSCertFile  *string        `env:"INFECTED_ADMIN_TLS_CERT_FILE"`
	AdminTLSKeyFile   *string        `env:"INFECTED_ADMIN_TLS_KEY_FILE"`
	CorsOrigins       []string       `env:"INFECTED_CORS_ORIGINS" envSeparator:","`
	Locale            *string        `env:"INFECTED_LOCALE"`
	MessagesPath      *string        `env:"INFECTED_MESSAGES_PATH"`
	HeartbeatInterval *time.Duration `env:"INFECTED_HEARTBEAT_INTERVAL"`
}

// ApplyEnv overlays INFECTED_* variables onto cfg. A nil environ reads the process environment.
func ApplyEnv(cfg *Settings, environ map[string]string) error {
	var raw envConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if raw.InfectionSeconds != nil {
		cfg.Contagion.InfectionSeconds = *raw.InfectionSeconds
	}
	if raw.ProtectionSeconds != nil {
		cfg.Contagion.ProtectionSeconds = *raw.ProtectionSeconds
	}
	if raw.CheckTicks != nil {
		cfg.Contagion.CheckPeriodTicks = *raw.CheckTicks
	}
	if raw.Radius != nil {
		cfg.Contagion.InfectionRadius = *raw.Radius
	}
	if raw.InAir != nil {
		cfg.Contagion.AllowInfectionInAir = *raw.InAir
	}
	if raw.Glow != nil {
		cfg.GlowEnabled = *raw.Glow
	}
	if raw.TickDuration != nil {
		cfg.TickDuration = *raw.TickDuration
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
		cfg.HeartbeatInterval = *raw.HeartbeatInterval
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
