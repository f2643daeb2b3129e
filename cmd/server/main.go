package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/txreview/service/config"
	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/metrics"
	natspkg "github.com/brojonat/txreview/service/nats"
	"github.com/brojonat/txreview/service/server"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Variables already in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg := config.MustLoad()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

// run serves review sessions until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting server", "addr", cfg.ServerAddr, "log_level", cfg.LogLevel)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	decoder, err := server.NewJQDecoder(cfg.DecoderJQ)
	if err != nil {
		return fmt.Errorf("failed to build upload decoder: %w", err)
	}

	// Reviews keep working without NATS; stored transactions just aren't announced.
	var publisher natspkg.Publisher
	if p, err := natspkg.NewPublisher(cfg.NATSURL, logger); err != nil {
		logger.Error("NATS unavailable, reviewed transactions will not be published",
			"nats_url", cfg.NATSURL,
			"error", err,
		)
	} else {
		publisher = p
		defer p.Close()
	}

	srv := server.New(cfg, store, publisher, decoder, metrics.NewMetrics(nil), logger)
	logger.Info("server initialized",
		"decoder", decoder.Program(),
		"nats_enabled", publisher != nil,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}
	return nil
}
