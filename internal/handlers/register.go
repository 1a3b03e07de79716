package handlers

import (
	"log/slog"
	"strings"

	"arkline/internal/config"
	"arkline/internal/pipeline"
	"arkline/internal/records"
)

// Deps carries the collaborators the built-in handlers are constructed
// from. Nil optional collaborators leave the corresponding handler in a
// reported-configuration-error state rather than unregistered, so records
// using those steps halt with a readable message.
type Deps struct {
	Store     *records.Store
	Config    *config.Config
	Registry  HandleRegistry
	Minter    Minter
	Resolver  Resolver
	Extractor TextExtractor
	Logger    *slog.Logger
}

// Register binds every built-in handler into the registry. The manual
// review step is intentionally absent: manual steps pause for human input
// by scheduling rule, not by handler.
func Register(registry *pipeline.Registry, deps Deps) error {
	resolver := deps.Resolver
	if resolver == nil && deps.Config != nil && strings.TrimSpace(deps.Config.Lookup.RegistryPath) != "" {
		resolver = NewFileResolver(deps.Config.Lookup.RegistryPath)
	}

	cfg := deps.Config
	if cfg == nil {
		defaulted := config.Default()
		cfg = &defaulted
	}

	bindings := []struct {
		stepType records.StepType
		handler  pipeline.Handler
	}{
		{records.StepParseFilename, NewParseFilename(deps.Store, deps.Logger)},
		{records.StepRegistryLookup, NewRegistryLookup(deps.Store, resolver, deps.Logger)},
		{records.StepGenerateFields, NewGenerateFields(deps.Store, cfg.Defaults, deps.Logger)},
		{records.StepExtractText, NewExtractText(deps.Store, deps.Extractor, deps.Logger)},
		{records.StepMintHandle, NewMintHandle(deps.Store, deps.Registry, cfg.Handle, cfg.Pipeline, deps.Logger)},
		{records.StepMintARK, NewMintARK(deps.Store, deps.Minter, deps.Logger)},
		{records.StepTranslate, NewTranslate(deps.Store, deps.Logger)},
	}
	for _, binding := range bindings {
		if err := registry.Register(binding.stepType, binding.handler); err != nil {
			return err
		}
	}
	return nil
}
