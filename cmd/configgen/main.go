package main

import (
	"flag"

	"github.com/banarnia/infected/internal/config"
	"github.com/banarnia/infected/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	format := flag.String("format", "toml", "config format: toml|yaml")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/infectedctl/config.<format>)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	observability.InitLogger("configgen")

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*format)
		}
		settings, err := config.Load(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("configgen validate failed")
		}
		log.Info().
			Str("path", path).
			Dur("period", settings.CheckPeriod()).
			Int("effects", len(settings.Effects)).
			Msg("configgen validated")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*format)
	}
	if err := config.WriteTemplate(target, *format, *force); err != nil {
		log.Fatal().Err(err).Str("path", target).Msg("configgen write failed")
	}
	log.Info().Str("format", *format).Str("path", target).Msg("configgen wrote template")
}

func defaultPath(format string) string {
	switch format {
	case "yaml", "yml":
		return "cmd/infectedctl/config.yml"
	default:
		return "cmd/infectedctl/config.toml"
	}
}
