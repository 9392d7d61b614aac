package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banarnia/infected/internal/logging"
	"github.com/banarnia/infected/internal/service"
)

func main() {
	configPath := flag.String("config", "", "config file (.toml or .yml); empty runs on defaults")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "infectedctl: %v\n", err)
		os.Exit(1)
	}
	svc := service.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "infectedctl: %v\n", err)
		os.Exit(1)
	}
}
