// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"

	"github.com/tundex/cinemarket/internal/admin"
	"github.com/tundex/cinemarket/internal/api"
	"github.com/tundex/cinemarket/internal/audit"
	"github.com/tundex/cinemarket/internal/auth"
	"github.com/tundex/cinemarket/internal/config"
	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/health"
	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
	"github.com/tundex/cinemarket/internal/purchase"
	"github.com/tundex/cinemarket/internal/review"
	"github.com/tundex/cinemarket/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Cinemarket API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
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

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := make([]any, 0, 16)
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	// Repositories: Postgres when a database is configured, in-memory
	// otherwise (development only).
	var (
		purchases  purchase.Repository
		movies     movie.Repository
		profiles   profile.Repository
		reviews    review.Repository
		deliveries purchase.WebhookLog
		auditRepo  audit.Repository
		checkers   = make(map[string]health.Checker)
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		defer db.Close()

		purchases = purchase.NewPostgresRepository(db, logger)
		movies = movie.NewPostgresRepository(db)
		profiles = profile.NewPostgresRepository(db)
		reviews = review.NewPostgresRepository(db)
		deliveries = purchase.NewPostgresWebhookLog(db)
		auditRepo = audit.NewPostgresRepository(db)
		checkers["database"] = health.NewDBChecker(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		purchases = purchase.NewInMemoryRepository()
		movies = movie.NewInMemoryRepository()
		profiles = profile.NewInMemoryRepository()
		reviews = review.NewInMemoryRepository()
		deliveries = purchase.NewInMemoryWebhookLog()
		auditRepo = audit.NewInMemoryRepository()
	}
	auditLog := audit.NewLogger(auditRepo)

	// Rate limiting: Redis-backed when available, in-memory otherwise.
	var rateStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		rateStore = middleware.NewRedisRateLimitStore(client)
		checkers["redis"] = health.NewRedisChecker(client)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		rateStore = memStore
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	payMetrics := purchase.NewMetrics()
	if err := payMetrics.Register(registry); err != nil {
		logger.Error("failed to register payment metrics", "error", err)
		os.Exit(1)
	}

	// Domain services
	gatewayClient := gateway.NewFlutterwaveClient(
		cfg.FlwSecretKey,
		cfg.FlwBaseURL,
		time.Duration(cfg.GatewayTimeoutSeconds)*time.Second,
		payMetrics.ObserveGatewayCall,
	)
	reconciler := purchase.NewReconciler(purchases, profiles, movies, payMetrics, logger)
	manual := purchase.NewManualReview(purchases, logger)
	admins := admin.NewChecker(cfg.AdminEmails)
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	var signer *storage.Signer
	if cfg.StorageConfigured() {
		var err error
		signer, err = storage.NewSigner(storage.Config{
			Bucket:             cfg.StorageBucket,
			AccessKeyID:        cfg.StorageAccessKeyID,
			SecretAccessKey:    cfg.StorageSecretAccessKey,
			Endpoint:           cfg.StorageEndpoint,
			DownloadTTLMinutes: cfg.SignedURLTTLMinutes,
		})
		if err != nil {
			logger.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("object storage not configured, download and proof endpoints disabled")
	}

	// Handlers
	checkoutHandlers := api.NewCheckoutHandlers(movies, profiles, purchases, gatewayClient, payMetrics, cfg.BaseURL)
	webhookHandlers := api.NewWebhookHandlers(cfg.FlwWebhookSecret, reconciler, deliveries, payMetrics)
	callbackHandlers := api.NewCallbackHandlers(gatewayClient, reconciler, cfg.SuccessURL, cfg.FailureURL)
	movieHandlers := api.NewMovieHandlers(movies, admins, auditLog)
	reviewHandlers := api.NewReviewHandlers(reviews, movies)
	healthHandlers := api.NewHealthHandlers(checkers)

	var proofSigner api.ProofSigner
	if signer != nil {
		proofSigner = signer
	}
	purchaseHandlers := api.NewPurchaseHandlers(purchases, movies, manual, admins, proofSigner, auditLog, auditRepo, deliveries, cfg.AllowUnownedGrants)

	requireAuth := middleware.RequireAuth(jwtService)
	optionalAuth := middleware.OptionalAuth(jwtService)
	checkoutLimit := middleware.RateLimiter(rateStore, middleware.DefaultCheckoutLimit(), middleware.UserKeyFunc())

	var downloadRoute http.Handler
	if signer != nil {
		downloadHandlers := api.NewDownloadHandlers(movies, purchases, signer)
		downloadRoute = requireAuth(http.HandlerFunc(downloadHandlers.HandleDownload))
	} else {
		downloadRoute = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			api.WriteError(w, r.Context(), http.StatusServiceUnavailable, api.ErrCodeInternal, "downloads are not enabled")
		})
	}

	getMovieRoute := http.HandlerFunc(movieHandlers.HandleGetMovie)
	reviewsRoute := optionalAuth(http.HandlerFunc(reviewHandlers.HandleMovieReviews))

	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandlers.HandleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.Handle("/flutterwave/checkout", requireAuth(checkoutLimit(http.HandlerFunc(checkoutHandlers.HandleCheckout))))
	mux.HandleFunc("/flutterwave/webhook", webhookHandlers.HandleFlutterwaveWebhook)
	mux.HandleFunc("/flutterwave/callback", callbackHandlers.HandleCallback)

	mux.HandleFunc("/movies", movieHandlers.HandleListMovies)
	mux.HandleFunc("/movies/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/movies/"), "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			getMovieRoute.ServeHTTP(w, r)
		case len(parts) == 2 && parts[1] == "download":
			downloadRoute.ServeHTTP(w, r)
		case len(parts) == 2 && parts[1] == "reviews":
			reviewsRoute.ServeHTTP(w, r)
		default:
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		}
	})

	mux.Handle("/purchases", requireAuth(http.HandlerFunc(purchaseHandlers.HandleListMine)))
	mux.Handle("/purchases/proof", requireAuth(http.HandlerFunc(purchaseHandlers.HandleSubmitProof)))

	adminMovies := requireAuth(http.HandlerFunc(movieHandlers.HandleAdminMovies))
	mux.Handle("/admin/movies", adminMovies)
	mux.Handle("/admin/movies/", adminMovies)
	mux.Handle("/admin/purchases", requireAuth(http.HandlerFunc(purchaseHandlers.HandleAdminList)))
	mux.Handle("/admin/purchases/", requireAuth(http.HandlerFunc(purchaseHandlers.HandleAdminAction)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"cinemarket-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Logging -> HTTP metrics
	handler := middleware.RequestID(middleware.Logging(logger)(httpMetrics.HTTPMetrics(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
