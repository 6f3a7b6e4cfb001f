// Package main is the entry point for the reconciliation sweeper.
//
// The sweeper re-verifies stale pending gateway purchases against the
// payment provider and converges the ledger when both the webhook and the
// browser callback were lost. Run it once (cron) or with -interval for a
// long-lived loop.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/tundex/cinemarket/internal/config"
	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/jobs"
	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
	"github.com/tundex/cinemarket/internal/purchase"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	interval := flag.Duration("interval", 0, "run continuously at this interval (0 = single run)")
	minAge := flag.Duration("min-age", purchase.DefaultSweepMinAge, "minimum age of pending records to sweep")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Cinemarket Reconciliation Sweeper")
		fmt.Println()
		fmt.Println("Usage: sweeper [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "sweeper requires DATABASE_URL")
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	purchases := purchase.NewPostgresRepository(db, logger)
	movies := movie.NewPostgresRepository(db)
	profiles := profile.NewPostgresRepository(db)

	gatewayClient := gateway.NewFlutterwaveClient(
		cfg.FlwSecretKey,
		cfg.FlwBaseURL,
		time.Duration(cfg.GatewayTimeoutSeconds)*time.Second,
		nil,
	)
	reconciler := purchase.NewReconciler(purchases, profiles, movies, nil, logger)
	sweeper := purchase.NewSweeper(purchases, gatewayClient, reconciler, logger, *minAge)
	jobMetrics := jobs.NewMetrics()

	runOnce := func(ctx context.Context) {
		start := time.Now()
		stats, err := sweeper.Sweep(ctx)
		jobMetrics.ObserveJobDuration(jobs.JobTypeReconcileSweep, time.Since(start).Seconds())
		if err != nil {
			jobMetrics.IncJobsTotal(jobs.JobTypeReconcileSweep, jobs.StatusFailure)
			jobMetrics.IncJobErrors(jobs.JobTypeReconcileSweep, "sweep_error")
			logger.Error("sweep failed", "error", err)
			return
		}
		jobMetrics.IncJobsTotal(jobs.JobTypeReconcileSweep, jobs.StatusSuccess)
		if stats.Errors > 0 {
			jobMetrics.IncJobErrors(jobs.JobTypeReconcileSweep, "record_error")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce(ctx)
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			runOnce(ctx)
		}
	}
}
