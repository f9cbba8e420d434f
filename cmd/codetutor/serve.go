package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/events"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codetutor web server",
	Long: `Start the codetutor HTTP server with REST API and WebSocket support.

API endpoints are under /api, Prometheus metrics under /metrics.

Examples:
  codetutor serve
  codetutor serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	a, err := newApp(executor.WithRecorder(m))
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := events.New(events.KafkaConfig{
		Brokers: a.cfg.Events.Kafka.Brokers,
		Topic:   a.cfg.Events.Kafka.Topic,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	if len(a.cfg.Events.Kafka.Brokers) > 0 {
		a.logger.Info().Strs("brokers", a.cfg.Events.Kafka.Brokers).Str("topic", a.cfg.Events.Kafka.Topic).
			Msg("publishing execution events")
	}
	a.logger.Info().Str("isolation", a.cfg.Sandbox.Isolation).Dur("timeout", a.engine.Timeout()).
		Msg("sandbox ready")

	// Determine port
	port := a.cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(a.cfg, a.engine, store,
		server.WithLogger(a.logger),
		server.WithPublisher(publisher),
		server.WithMetrics(m),
		server.WithDrainTimeout(a.engine.Timeout()+5*time.Second),
	)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start returns as soon as Shutdown begins; running children must be
	// reaped before the process exits.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCh
		if err := srv.Shutdown(context.Background()); err != nil {
			a.logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
