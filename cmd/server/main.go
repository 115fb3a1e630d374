package main

import (
	"context"
	"fmt"

	log "github.com/charmbracelet/log"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/infra/initializer"
	"github.com/tapyield/cashout/pkg/app"
	"github.com/tapyield/cashout/webapi"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	logger := deps.Logger

	a := app.New(*deps, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.StartHealthCheckLoop(ctx, cfg.Failover.HealthCheckInterval)
	if cfg.Autopilot.Enabled {
		a.Autopilot.Start()
		defer a.Autopilot.Stop()
	}

	fiberApp := webapi.SetupApp(a)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		"env", cfg.Env,
		"address", addr,
		"mock_mode", cfg.Providers.MockMode,
		"autopilot", cfg.Autopilot.Enabled,
	)

	return fiberApp.Listen(addr)
}
