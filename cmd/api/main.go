package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/app/migrate"
	httpx "github.com/saralaufeyson/leetcode-team-dashboard/internal/http"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository/postgres"
	redisrepo "github.com/saralaufeyson/leetcode-team-dashboard/internal/repository/redis"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/auth"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/freshness"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/leaderboard"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/roster"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/stats"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/config"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/leetcode"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := leetcode.New(cfg.LeetCodeEndpoint,
		leetcode.WithTimeout(cfg.FetchTimeout),
		leetcode.WithLogger(log),
		leetcode.WithMetrics(registry),
	)
	if err != nil {
		log.Error("failed to configure profile client", "error", err)
		os.Exit(1)
	}

	var redisClient *goredis.Client
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisClient, err = redisrepo.Dial(ctx, addr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			if cfg.CacheEnabled && cfg.CacheBackend == "redis" {
				log.Error("redis cache backend unavailable", "error", err)
				os.Exit(1)
			}
			log.Warn("redis unavailable, using in-process rate limiting", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	var fetcher leaderboard.Fetcher = client
	if cfg.CacheEnabled {
		var store repository.CacheRepository = repo
		if cfg.CacheBackend == "redis" {
			store = redisrepo.NewCacheStore(redisClient, cfg.CacheRetention)
		} else {
			pruner, err := freshness.NewPruner(repo, cfg.CacheRetention, cfg.CachePruneEvery, log)
			if err != nil {
				log.Error("failed to configure cache pruner", "error", err)
				os.Exit(1)
			}
			if err := pruner.Start(); err != nil {
				log.Error("failed to start cache pruner", "error", err)
				os.Exit(1)
			}
			defer func() { _ = pruner.Shutdown() }()
		}
		cache := freshness.New(store, log, freshness.WithMetrics(registry))
		fetcher = freshness.NewFetcher(cache, client, cfg.CacheMaxAge, log)
		log.Info("profile cache enabled", "backend", cfg.CacheBackend, "max_age", cfg.CacheMaxAge.String())
	}

	authSvc := auth.New(repo, repo, log, cfg)
	rosterSvc := roster.New(repo, fetcher, log)
	leaderboardSvc := leaderboard.New(rosterSvc, fetcher, log, cfg)
	statsSvc := stats.New(repo, log)

	// already validated by LoadAPIConfig
	trustedProxies, _ := cfg.TrustedProxyPrefixes()
	if len(trustedProxies) > 0 {
		log.Info("honouring X-Forwarded-For from trusted proxies", "proxies", cfg.TrustedProxies)
	}

	limiter := httpx.NewMemoryRateLimiter()
	if redisClient != nil {
		limiter.Close()
		limiter = httpx.NewRedisRateLimiter(redisClient, log)
	}

	router := httpx.NewRouter(log, httpx.Services{
		Auth:        authSvc,
		Roster:      rosterSvc,
		Leaderboard: leaderboardSvc,
		Stats:       statsSvc,
	}, limiter, registry, repo.Ping, httpx.WithTrustedProxies(trustedProxies))
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "environment", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
