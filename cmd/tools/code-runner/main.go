package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/codetutor/internal/config"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/language"
	"github.com/michaelbrown/codetutor/internal/logging"
	"github.com/michaelbrown/codetutor/internal/sandbox"
	"github.com/michaelbrown/codetutor/internal/tools"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "code-runner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CODETUTOR_CONFIG"))
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol, so logs go to stderr as JSON.
	logger, err := logging.New(cfg.Log.Level, "json", os.Stderr)
	if err != nil {
		return err
	}

	registry, err := language.NewRegistry(cfg.Sandbox.Commands)
	if err != nil {
		return fmt.Errorf("building language registry: %w", err)
	}
	sb, err := sandbox.New(cfg.Sandbox.Policy(), sandbox.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating sandbox: %w", err)
	}

	engine := executor.New(registry, sb,
		executor.WithTimeout(cfg.Sandbox.Timeout),
		executor.WithMaxOutput(cfg.Sandbox.MaxOutput),
		executor.WithTempDir(cfg.Sandbox.TempDir),
		executor.WithLogger(logger),
	)

	if err := server.ServeStdio(tools.NewServer(engine, version)); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
