// Package main runs the live gem scanner: poll the pump.fun new-token
// listing, merge creation-stream events, evaluate trends against history,
// and deliver Telegram alerts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/armpit-symphony/pump-me-fun/internal/alerting"
	"github.com/armpit-symphony/pump-me-fun/internal/config"
	"github.com/armpit-symphony/pump-me-fun/internal/feed"
	"github.com/armpit-symphony/pump-me-fun/internal/indicator"
	"github.com/armpit-symphony/pump-me-fun/internal/notify"
	"github.com/armpit-symphony/pump-me-fun/internal/observability"
	"github.com/armpit-symphony/pump-me-fun/internal/scanner"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
	chstore "github.com/armpit-symphony/pump-me-fun/internal/storage/clickhouse"
	"github.com/armpit-symphony/pump-me-fun/internal/storage/file"
	"github.com/armpit-symphony/pump-me-fun/internal/storage/memory"
	"github.com/armpit-symphony/pump-me-fun/internal/storage/migrations"
	pgstore "github.com/armpit-symphony/pump-me-fun/internal/storage/postgres"
	redisstore "github.com/armpit-symphony/pump-me-fun/internal/storage/redis"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to JSON config file")
	backend := flag.String("backend", "", "History backend override: memory, file, postgres or redis")
	historyFile := flag.String("history-file", "", "History snapshot path override (file backend)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string override")
	redisAddr := flag.String("redis-addr", "", "Redis address override")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string override (enables the observation archive)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address override")
	once := flag.Bool("once", false, "Run a single scan cycle and exit")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[scanner] ", log.LstdFlags|log.Lshortfile)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Flags win over both the config file and the environment.
	applyOverrides(cfg, *backend, *historyFile, *postgresDSN, *redisAddr, *clickhouseDSN, *metricsAddr)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Credentials are validated here rather than in config.Load so offline
	// tools can run without them; the live scanner needs all of them.
	if cfg.Feed.APIKey == "" {
		logger.Fatal("MORALIS_API_KEY is required")
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}

	logBanner(logger, cfg)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Start metrics server if enabled
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Feed the uptime counter
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.DefaultMetrics.UptimeSeconds.Inc()
			}
		}
	}()

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Create stores
	store, archive, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}

	// Subscribe to the creation stream if configured. The stream only
	// enriches the polled listing, so a dead endpoint is not fatal.
	var watcher *feed.Watcher
	if cfg.Feed.WSEndpoint != "" {
		w, werr := feed.NewWatcher(ctx, cfg.Feed.WSEndpoint, nil)
		if werr != nil {
			logger.Printf("Creation stream unavailable, polling only: %v", werr)
		} else {
			watcher = w
			logger.Printf("Subscribed to creation stream at %s", cfg.Feed.WSEndpoint)
		}
	}

	transport := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		notify.WithTimeout(cfg.SendTimeout()))
	dispatcher := notify.NewDispatcher(transport, notify.RetryPolicy{
		MaxAttempts:  cfg.Telegram.MaxAttempts,
		InitialDelay: time.Duration(cfg.Telegram.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Telegram.MaxDelayMs) * time.Millisecond,
		Multiplier:   cfg.Telegram.BackoffMultiplier,
	})

	engine := scanner.NewEngine(scanner.EngineOptions{
		Source:       feed.NewHTTPSource(cfg.Feed.BaseURL, cfg.Feed.APIKey),
		Watcher:      watcher,
		Store:        store,
		Archive:      archive,
		Evaluator:    indicator.NewEvaluator(thresholds(cfg)),
		Decider:      alerting.NewDecider(policy(cfg)),
		Notifier:     dispatcher,
		FetchLimit:   cfg.Scan.FetchLimit,
		FetchTimeout: cfg.FetchTimeout(),
		PollInterval: cfg.PollInterval(),
		Retention:    cfg.Retention(),
		Logger:       logger,
	})

	if *once {
		_, err = engine.RunCycle(ctx)
	} else {
		err = engine.Run(ctx)
	}

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if watcher != nil {
		watcher.Close()
	}
	cleanup()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// applyOverrides lays non-empty command-line flags over the loaded
// configuration.
func applyOverrides(cfg *config.Config, backend, historyFile, postgresDSN, redisAddr, clickhouseDSN, metricsAddr string) {
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if historyFile != "" {
		cfg.Storage.HistoryFile = historyFile
	}
	if postgresDSN != "" {
		cfg.Storage.PostgresDSN = postgresDSN
	}
	if redisAddr != "" {
		cfg.Storage.RedisAddr = redisAddr
	}
	if clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = clickhouseDSN
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
}

// logBanner prints the effective settings so the log shows which thresholds
// produced which alerts.
func logBanner(logger *log.Logger, cfg *config.Config) {
	logger.Printf("Backend: %s, archive: %v, creation stream: %v, metrics: %q",
		cfg.Storage.Backend, cfg.Storage.ClickHouseDSN != "", cfg.Feed.WSEndpoint != "", cfg.Metrics.Addr)
	logger.Printf("Scan: every %v, fetch limit %d, retention %v, re-alert window %v",
		cfg.PollInterval(), cfg.Scan.FetchLimit, cfg.Retention(), cfg.RealertWindow())
	logger.Printf("Eligibility: liquidity >= $%.0f, age %.1f-%.1fh",
		cfg.Thresholds.MinLiquidityUSD, cfg.Thresholds.MinAgeHours, cfg.Thresholds.MaxAgeHours)
	logger.Printf("Indicators: absolute >= $%.0f, momentum >= %.0f%%, growth >= %.0f%%, spike >= %.1fx (floor %d txns), survivor >= %.1fx after %.0fh",
		cfg.Thresholds.MinAbsoluteLiquidityUSD,
		cfg.Thresholds.MinPriceMomentum*100,
		cfg.Thresholds.MinLiquidityGrowth*100,
		cfg.Thresholds.MinVolumeSpike,
		cfg.Thresholds.MinTxnsForSpike,
		cfg.Thresholds.WeekOldLiquidityMultiplier,
		cfg.Thresholds.WeekOldAgeHours)
}

// createStores builds the history store for the configured backend and the
// optional observation archive. The returned cleanup closes everything in
// reverse order.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.HistoryStore, storage.ObservationArchive, func(), error) {
	var store storage.HistoryStore
	var pool *pgstore.Pool

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		store = memory.NewHistoryStore()

	case config.BackendFile:
		fs, err := file.NewHistoryStore(cfg.Storage.HistoryFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open history snapshot: %w", err)
		}
		store = fs

	case config.BackendPostgres:
		p, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, p); err != nil {
			p.Close()
			return nil, nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		pool = p
		store = pgstore.NewHistoryStore(p)

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = redisstore.NewHistoryStore(client)

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var archive storage.ObservationArchive
	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			store.Close()
			if pool != nil {
				pool.Close()
			}
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		archive = chstore.NewObservationArchive(conn)
	}

	cleanup := func() {
		if archive != nil {
			if err := archive.Close(); err != nil {
				logger.Printf("Error closing observation archive: %v", err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Printf("Error closing history store: %v", err)
		}
		if pool != nil {
			pool.Close()
		}
	}

	return store, archive, cleanup, nil
}

// thresholds maps configuration onto the indicator trigger levels.
func thresholds(cfg *config.Config) indicator.Thresholds {
	return indicator.Thresholds{
		MinAbsoluteLiquidityUSD:    cfg.Thresholds.MinAbsoluteLiquidityUSD,
		MinPriceMomentum:           cfg.Thresholds.MinPriceMomentum,
		MinLiquidityGrowth:         cfg.Thresholds.MinLiquidityGrowth,
		MinVolumeSpike:             cfg.Thresholds.MinVolumeSpike,
		MinTxnsForSpike:            cfg.Thresholds.MinTxnsForSpike,
		WeekOldAgeHours:            cfg.Thresholds.WeekOldAgeHours,
		WeekOldLiquidityMultiplier: cfg.Thresholds.WeekOldLiquidityMultiplier,
	}
}

// policy maps configuration onto the alert gates.
func policy(cfg *config.Config) alerting.Policy {
	return alerting.Policy{
		MinLiquidityUSD: cfg.Thresholds.MinLiquidityUSD,
		MinAgeHours:     cfg.Thresholds.MinAgeHours,
		MaxAgeHours:     cfg.Thresholds.MaxAgeHours,
		RealertWindow:   cfg.RealertWindow(),
	}
}
