package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/banarnia/infected/internal/config"
	"github.com/banarnia/infected/internal/service"
)

type idConfig struct {
	ServiceID string `toml:"service_id"`
}

func loadServiceConfig(path string) (service.ServiceConfig, error) {
	cfg := service.DefaultServiceConfig()
	path = strings.TrimSpace(path)

	settings, err := config.Load(path)
	if err != nil {
		return service.ServiceConfig{}, fmt.Errorf("load infected config: %w", err)
	}
	cfg.Settings = settings
	cfg.ConfigPath = path

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var raw idConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return service.ServiceConfig{}, fmt.Errorf("load infected config: %w", err)
		}
		if meta.IsDefined("service_id") {
			if id := strings.TrimSpace(raw.ServiceID); id != "" {
				cfg.ServiceID = id
			}
		}
	}
	return cfg, nil
}
