package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/johap/internal/config"
	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/logging"
	"github.com/evcraddock/johap/internal/parcel"
	"github.com/evcraddock/johap/internal/property"
	"github.com/evcraddock/johap/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API server. Configuration comes from JOHAP_* environment variables and an optional .env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: JOHAP_PORT or 8080)")

	return cmd
}

func runServe(ctx context.Context, port int) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}
	logging.Setup(cfg.DevMode)

	path, err := dbPath(cfg.DBPath)
	if err != nil {
		return err
	}
	database, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDB(database)

	// Without a VWorld key units must be added with an explicit parcel number.
	var lookup property.Lookuper
	if cfg.VWorldKey != "" {
		pc, err := parcel.NewClient(cfg.VWorldKey)
		if err != nil {
			return err
		}
		lookup = pc
	}

	srv, err := web.NewServer(database, cfg, lookup)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "db", path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return runCleanup(ctx, srv, cfg.CleanupInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleaner purges expired records.
type cleaner interface {
	Cleanup() error
}

// runCleanup calls Cleanup every interval until ctx is done. Failures are
// logged and retried on the next tick.
func runCleanup(ctx context.Context, c cleaner, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Cleanup(); err != nil {
				slog.Warn("cleanup failed", "err", err)
			}
		}
	}
}
