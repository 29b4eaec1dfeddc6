package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/promille/internal/bac"
	"github.com/hperssn/promille/internal/config"
	"github.com/hperssn/promille/internal/engine"
	httpapi "github.com/hperssn/promille/internal/http"
	"github.com/hperssn/promille/internal/profile"
	"github.com/hperssn/promille/internal/registry"
	"github.com/hperssn/promille/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the inactivity sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func openGateway(ctx context.Context, cfg *config.Config) (*storage.Gateway, error) {
	local, err := storage.NewSQLiteRepository(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	var remote storage.Repository
	if cfg.Storage.PostgresDSN != "" {
		pg, err := storage.NewPostgresRepository(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Printf("Postgres unavailable, continuing with the local store only: %v", err)
		} else {
			remote = pg
		}
	}

	return storage.NewGateway(local, remote, storage.GatewayOptions{
		RetryBase:  cfg.Storage.RetryBase.Duration,
		MaxRetries: uint64(cfg.Storage.MaxRetries),
	}), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	profiles, err := profile.LoadFile(cfg.Sessions.ProfilesFile)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d profiles from %s", len(profiles.IDs()), cfg.Sessions.ProfilesFile)

	gateway, err := openGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer gateway.Close()

	eng := engine.New(registry.New(), bac.New(cfg.Calibration()), profiles, gateway, engine.Options{
		InactivityThreshold: cfg.Sessions.InactivityThreshold.Duration,
		SweepInterval:       cfg.Sessions.SweepInterval.Duration,
		PersistTimeout:      cfg.Storage.PersistTimeout.Duration,
	})
	defer eng.Close()

	if err := eng.Rehydrate(ctx, profiles.IDs()); err != nil {
		log.Printf("Rehydration incomplete: %v", err)
	}

	go eng.Run(ctx)
	go logPersistFailures(ctx, eng.PersistResults())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(eng, profiles),
		ReadHeaderTimeout: 10 * time.Second,
		// streams end with the process context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := eng.Flush(shutdownCtx); err != nil {
		log.Printf("Pending saves not flushed: %v", err)
	}
	return nil
}

func logPersistFailures(ctx context.Context, results <-chan engine.PersistResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-results:
			if errors.Is(r.Err, storage.ErrRemoteSync) {
				log.Printf("WARN: session %s saved locally but not remotely: %v", r.SessionID, r.Err)
			}
		}
	}
}
