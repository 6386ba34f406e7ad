package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grainstack/grain/examples/counter"
	"github.com/grainstack/grain/pkg/api"
	"github.com/grainstack/grain/pkg/config"
	"github.com/grainstack/grain/pkg/dispatch"
	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/schema"
	"github.com/grainstack/grain/pkg/snapshot"
	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Grain HTTP runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(serveConfigPath)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to config file (YAML)")
}

func serve(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	log.Info("Grain starting")

	// Snapshot cache
	cache, err := snapshot.NewBoltStore(cfg.Snapshots)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer func() { _ = cache.Close() }()

	// Bus and event store
	bus := pubsub.NewBus(pubsub.Config{Buffer: cfg.PubSub.Buffer})
	schemas := schema.NewRegistry()
	store, err := eventstore.Open(context.Background(), eventstore.Config{
		Conn:    cfg.EventStore.Conn,
		Bus:     bus,
		Schemas: schemas,
	})
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Application registrations
	counter.Register(dispatch.DefaultCommands, dispatch.DefaultQueries, schemas)
	auditor, err := counter.StartAuditor(bus, store)
	if err != nil {
		return fmt.Errorf("failed to start auditor: %w", err)
	}

	server := api.NewServer(api.Config{
		Commands: dispatch.DefaultCommands,
		Queries:  dispatch.DefaultQueries,
		Store:    store,
		Bus:      bus,
		Cache:    cache,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("Error stopping HTTP server", err)
	}

	// Processors before the bus: Stop drains their subscriptions.
	auditor.Stop()
	bus.Close()

	log.Info("Grain stopped")
	return nil
}
