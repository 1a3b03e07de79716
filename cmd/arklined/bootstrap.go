package main

import (
	"fmt"
	"log/slog"

	"arkline/internal/config"
	"arkline/internal/handlers"
	"arkline/internal/pipeline"
	"arkline/internal/records"
	"arkline/internal/services/arkmint"
	"arkline/internal/services/handle"
)

// registerHandlers wires the built-in step handlers with the identifier
// clients the configuration enables. Disabled services stay nil; their steps
// report a configuration error instead of crashing the daemon.
func registerHandlers(registry *pipeline.Registry, cfg *config.Config, store *records.Store, logger *slog.Logger) error {
	deps := handlers.Deps{
		Store:  store,
		Config: cfg,
		Logger: logger,
	}

	if cfg.Handle.Enabled {
		client, err := handle.NewConfiguredClient(cfg.Handle, logger)
		if err != nil {
			return fmt.Errorf("configure handle registry client: %w", err)
		}
		deps.Registry = client
	}
	if cfg.Ark.Enabled {
		deps.Minter = arkmint.NewConfiguredClient(cfg.Ark, logger)
	}

	return handlers.Register(registry, deps)
}
