package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/michaelbrown/codetutor/internal/config"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/language"
	"github.com/michaelbrown/codetutor/internal/logging"
	"github.com/michaelbrown/codetutor/internal/sandbox"
	"github.com/michaelbrown/codetutor/internal/storage"
	"github.com/michaelbrown/codetutor/internal/storage/sqlite"
)

// app holds what every command needs: config, logger and the engine.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *language.Registry
	engine   *executor.Engine
}

func newApp(extra ...executor.Option) (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	registry, err := language.NewRegistry(cfg.Sandbox.Commands)
	if err != nil {
		return nil, fmt.Errorf("building language registry: %w", err)
	}

	sb, err := sandbox.New(cfg.Sandbox.Policy(), sandbox.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}

	opts := []executor.Option{
		executor.WithTimeout(cfg.Sandbox.Timeout),
		executor.WithMaxOutput(cfg.Sandbox.MaxOutput),
		executor.WithTempDir(cfg.Sandbox.TempDir),
		executor.WithLogger(logger),
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		engine:   executor.New(registry, sb, append(opts, extra...)...),
	}, nil
}

func (a *app) openStore() (storage.Store, error) {
	store, err := sqlite.Open(a.cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}
