// Package app assembles the dependency graph: configuration, adapters,
// and the services the CLI drives.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/infrastructure/ai"
	"github.com/opsforge/opspilot/internal/infrastructure/config"
	"github.com/opsforge/opspilot/internal/infrastructure/gateway"
	"github.com/opsforge/opspilot/internal/infrastructure/match"
	"github.com/opsforge/opspilot/internal/infrastructure/memory"
	"github.com/opsforge/opspilot/internal/infrastructure/security"
	"github.com/opsforge/opspilot/internal/pkg/filesystem"
	"github.com/opsforge/opspilot/internal/pkg/logger"
	"github.com/opsforge/opspilot/internal/ports"
	"github.com/opsforge/opspilot/internal/services"
)

// Options configures container construction.
type Options struct {
	Verbose bool
	// ConfigPath overrides the config location when non-empty.
	ConfigPath string
}

// Container wires the services with their infrastructure adapters.
type Container struct {
	Resolver *services.ResolverService
	Doctor   *services.DoctorService

	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Matcher        ports.Matcher
	Classifier     ports.Classifier
	Factory        ports.ProviderFactory
	Memory         ports.MemoryStore
	Gateway        ports.Gateway
	Logger         *logger.ZapLogger
}

// BuildContainer constructs the dependency graph. Configuration problems
// and unknown provider kinds fail here, before any turn starts.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New(opts.Verbose)

	matcher, err := match.NewMatcher(cfg.Matcher)
	if err != nil {
		return nil, fmt.Errorf("command table: %w", err)
	}
	classifier, err := security.NewClassifier(cfg.Security.RulesFile)
	if err != nil {
		// A broken user rule file must not loosen the gate; fall back to
		// the embedded rules and say so.
		log.Warn("risk rules unusable, using built-in set", map[string]interface{}{
			"path":  cfg.Security.RulesFile,
			"error": err.Error(),
		})
		classifier, err = security.NewClassifier("")
		if err != nil {
			return nil, fmt.Errorf("risk rules: %w", err)
		}
	}

	factory := ai.NewFactory(nil)
	if err := validateProviderChain(&cfg, factory); err != nil {
		return nil, err
	}

	store := buildMemory(cfg, log)

	resolver := &services.ResolverService{
		Config:     cfg,
		Matcher:    matcher,
		Classifier: classifier,
		Factory:    factory,
		Memory:     store,
		Gateway:    gateway.New(cfg.ExecutionTimeoutSeconds()),
		Logger:     log,
	}

	doctor := &services.DoctorService{
		ConfigProvider: cfgLoader,
		Matcher:        matcher,
		Classifier:     classifier,
		Factory:        factory,
		Memory:         store,
	}

	return &Container{
		Resolver:       resolver,
		Doctor:         doctor,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Matcher:        matcher,
		Classifier:     classifier,
		Factory:        factory,
		Memory:         store,
		Gateway:        resolver.Gateway,
		Logger:         log,
	}, nil
}

// validateProviderChain builds every provider in the default chain once so
// a mistyped kind surfaces at startup, never mid-turn.
func validateProviderChain(cfg *domain.Config, factory ports.ProviderFactory) error {
	chain, err := cfg.ProviderChain("")
	if err != nil {
		return err
	}
	for _, pc := range chain {
		if _, err := factory.ForConfig(pc); err != nil {
			return err
		}
	}
	return nil
}

// buildMemory selects the configured backend. sqlite is the default and
// quietly degrades to per-host JSON files when the database is unusable.
func buildMemory(cfg domain.Config, log *logger.ZapLogger) ports.MemoryStore {
	dir := cfg.Memory.Dir
	if dir == "" {
		dir = filepath.Join(filesystem.AppDir(), "memory")
	}
	maxTurns := cfg.MemoryMaxTurns()

	switch cfg.MemoryBackendName() {
	case domain.MemoryBackendMemory:
		return memory.NewStore(maxTurns)
	case domain.MemoryBackendFile:
		return memory.NewFileStore(dir, maxTurns)
	default:
		store := memory.NewSQLiteStore(dir, maxTurns)
		if store.Degraded() {
			log.Warn("memory database unusable, using file backend", map[string]interface{}{
				"dir": dir,
			})
		}
		return store
	}
}
