package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticehq/lattice"
	fileStore "github.com/latticehq/lattice/internal/adapters/file"
	httpAdapter "github.com/latticehq/lattice/internal/adapters/http"
	"github.com/latticehq/lattice/internal/adapters/memory"
	redisStore "github.com/latticehq/lattice/internal/adapters/redis"
	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/ports"
	"github.com/latticehq/lattice/pkg/serialization"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the Lattice engine in server mode, exposing the command API as JSON over HTTP with an SSE event stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		store, err := buildStore(cfg)
		if err != nil {
			return err
		}

		events := httpAdapter.NewBroadcaster()
		engine := lattice.New(
			lattice.WithLogger(logger),
			lattice.WithLifecycleHooks(events.Hooks()),
			lattice.WithWorkers(cfg.Execution.Workers),
			lattice.WithHistoryDepth(cfg.History.Depth),
			lattice.WithSnapshotStore(store),
		)
		registerDefaultRunners(engine)

		server := httpAdapter.NewServer(engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithBroadcaster(events),
		)
		srv := &http.Server{
			Addr:    cfg.Server.Address,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server listening", "address", srv.Addr, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			engine.CancelExecution()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
		}
		return nil
	},
}

func buildStore(cfg *config.Config) (ports.SnapshotStore, error) {
	switch cfg.Store.Backend {
	case "memory", "":
		return memory.New(), nil
	case "file":
		opts := []fileStore.Option{}
		if cfg.Store.Format == "msgpack" {
			opts = append(opts, fileStore.WithSerializer(serialization.Default(), ".msgpack"))
		}
		return fileStore.New(cfg.Store.Path, opts...), nil
	case "redis":
		return redisStore.New(cfg.Store.Redis.Address, cfg.Store.Redis.Password, cfg.Store.Redis.DB,
			redisStore.WithPrefix(cfg.Store.Redis.Prefix),
			redisStore.WithTTL(cfg.Store.Redis.TTL),
		), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// registerDefaultRunners installs passthrough runners for every executable
// kind so graphs run end to end without external collaborators. Hosts
// embedding the library replace these with real integrations.
func registerDefaultRunners(engine *lattice.Engine) {
	for _, kind := range domain.ExecutableKinds() {
		engine.RegisterRunner(kind, ports.Passthrough())
	}
}

func init() {
	serveCmd.Flags().String("address", "", "Listen address (e.g. :8080)")
	serveCmd.Flags().Int("workers", 0, "Execution worker pool size")
	serveCmd.Flags().String("store", "", "Snapshot store backend: memory, file or redis")
	rootCmd.AddCommand(serveCmd)
}
