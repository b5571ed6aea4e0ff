package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide scanner configuration. It is loaded once at
// startup and treated as immutable for the lifetime of the run.
type Config struct {
	Scan       Scan       `json:"scan"`
	Thresholds Thresholds `json:"thresholds"`
	Feed       Feed       `json:"feed"`
	Telegram   Telegram   `json:"telegram"`
	Storage    Storage    `json:"storage"`
	Metrics    Metrics    `json:"metrics"`
}

// Scan controls the poll loop and history lifecycle.
type Scan struct {
	PollIntervalSeconds   int     `json:"poll_interval_seconds"`
	FetchLimit            int     `json:"fetch_limit"`
	RealertHours          float64 `json:"realert_hours"` // 0 disables the cooldown
	HistoryRetentionHours float64 `json:"history_retention_hours"`
}

// Thresholds holds eligibility gates and indicator trigger levels.
type Thresholds struct {
	MinLiquidityUSD            float64 `json:"min_liquidity_usd"`
	MinAbsoluteLiquidityUSD    float64 `json:"min_absolute_liquidity_usd"`
	MinAgeHours                float64 `json:"min_age_hours"`
	MaxAgeHours                float64 `json:"max_age_hours"`
	MinPriceMomentum           float64 `json:"min_price_momentum"`
	MinLiquidityGrowth         float64 `json:"min_liquidity_growth"`
	MinVolumeSpike             float64 `json:"min_volume_spike"`
	MinTxnsForSpike            int64   `json:"min_txns_for_spike"`
	WeekOldAgeHours            float64 `json:"week_old_age_hours"`
	WeekOldLiquidityMultiplier float64 `json:"week_old_liquidity_multiplier"`
}

// Feed configures the pump.fun listing source.
type Feed struct {
	BaseURL             string `json:"base_url"`
	APIKey              string `json:"api_key"`
	FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
	WSEndpoint          string `json:"ws_endpoint"` // empty disables the watcher
}

// Telegram configures the notification channel and its retry policy.
type Telegram struct {
	BotToken           string  `json:"bot_token"`
	ChatID             string  `json:"chat_id"`
	SendTimeoutSeconds int     `json:"send_timeout_seconds"`
	MaxAttempts        int     `json:"max_attempts"`
	InitialDelayMs     int     `json:"initial_delay_ms"`
	MaxDelayMs         int     `json:"max_delay_ms"`
	BackoffMultiplier  float64 `json:"backoff_multiplier"`
}

// Storage selects the history backend and the optional archive.
type Storage struct {
	Backend       string `json:"backend"` // memory | file | postgres | redis
	HistoryFile   string `json:"history_file"`
	PostgresDSN   string `json:"postgres_dsn"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	ClickHouseDSN string `json:"clickhouse_dsn"` // empty disables the archive
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Addr string `json:"addr"` // empty disables the HTTP listener
}

// Supported history backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Default returns the configuration used when neither file nor environment
// overrides a knob.
func Default() *Config {
	return &Config{
		Scan: Scan{
			PollIntervalSeconds:   300,
			FetchLimit:            200,
			RealertHours:          6,
			HistoryRetentionHours: 200,
		},
		Thresholds: Thresholds{
			MinLiquidityUSD:            20000,
			MinAbsoluteLiquidityUSD:    200000,
			MinAgeHours:                4,
			MaxAgeHours:                168,
			MinPriceMomentum:           0.20,
			MinLiquidityGrowth:         0.50,
			MinVolumeSpike:             5.0,
			MinTxnsForSpike:            10,
			WeekOldAgeHours:            168,
			WeekOldLiquidityMultiplier: 2.0,
		},
		Feed: Feed{
			BaseURL:             "https://solana-gateway.moralis.io",
			FetchTimeoutSeconds: 30,
		},
		Telegram: Telegram{
			SendTimeoutSeconds: 10,
			MaxAttempts:        3,
			InitialDelayMs:     1000,
			MaxDelayMs:         10000,
			BackoffMultiplier:  2.0,
		},
		Storage: Storage{
			Backend:     BackendFile,
			HistoryFile: "scanner_history.json",
		},
		Metrics: Metrics{
			Addr: ":9090",
		},
	}
}

// Load builds the effective configuration: defaults, then the optional JSON
// file at path, then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides deployment-varying knobs from the environment.
// Credentials always come from env when set, matching the original scanner's
// MORALIS_API_KEY / TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID contract.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MORALIS_API_KEY"); v != "" {
		cfg.Feed.APIKey = v
	}
	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("FEED_WS_ENDPOINT"); v != "" {
		cfg.Feed.WSEndpoint = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("HISTORY_FILE"); v != "" {
		cfg.Storage.HistoryFile = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Storage.RedisDB = db
		}
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("FETCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.FetchLimit = n
		}
	}
	if v := os.Getenv("REALERT_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scan.RealertHours = f
		}
	}
	if v := os.Getenv("MIN_LIQUIDITY_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Thresholds.MinLiquidityUSD = f
		}
	}
	if v := os.Getenv("MIN_ABSOLUTE_LIQUIDITY_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Thresholds.MinAbsoluteLiquidityUSD = f
		}
	}
}

// Validate checks structural invariants. Credential presence is checked by
// the commands that need the credential, not here, so offline tools can run
// with partial configuration.
func (c *Config) Validate() error {
	if c.Scan.PollIntervalSeconds <= 0 {
		return fmt.Errorf("scan.poll_interval_seconds must be positive, got %d", c.Scan.PollIntervalSeconds)
	}
	if c.Scan.FetchLimit <= 0 {
		return fmt.Errorf("scan.fetch_limit must be positive, got %d", c.Scan.FetchLimit)
	}
	if c.Scan.RealertHours < 0 {
		return fmt.Errorf("scan.realert_hours must not be negative, got %f", c.Scan.RealertHours)
	}
	if c.Scan.HistoryRetentionHours <= 0 {
		return fmt.Errorf("scan.history_retention_hours must be positive, got %f", c.Scan.HistoryRetentionHours)
	}
	if c.Thresholds.MinAgeHours < 0 || c.Thresholds.MaxAgeHours < 0 {
		return fmt.Errorf("thresholds.min_age_hours and max_age_hours must not be negative")
	}
	if c.Thresholds.MinAgeHours > c.Thresholds.MaxAgeHours {
		return fmt.Errorf("thresholds.min_age_hours %f exceeds max_age_hours %f", c.Thresholds.MinAgeHours, c.Thresholds.MaxAgeHours)
	}
	if c.Scan.HistoryRetentionHours < c.Thresholds.MaxAgeHours {
		// Pruning inside the alertable window would make every re-scan look
		// like a first sighting.
		return fmt.Errorf("scan.history_retention_hours %f is below thresholds.max_age_hours %f", c.Scan.HistoryRetentionHours, c.Thresholds.MaxAgeHours)
	}
	if c.Thresholds.MinLiquidityUSD < 0 || c.Thresholds.MinAbsoluteLiquidityUSD < 0 {
		return fmt.Errorf("liquidity thresholds must not be negative")
	}
	if c.Thresholds.MinTxnsForSpike < 0 {
		return fmt.Errorf("thresholds.min_txns_for_spike must not be negative, got %d", c.Thresholds.MinTxnsForSpike)
	}
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url must not be empty")
	}
	if c.Feed.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("feed.fetch_timeout_seconds must be positive, got %d", c.Feed.FetchTimeoutSeconds)
	}
	if c.Telegram.SendTimeoutSeconds <= 0 {
		return fmt.Errorf("telegram.send_timeout_seconds must be positive, got %d", c.Telegram.SendTimeoutSeconds)
	}
	if c.Telegram.MaxAttempts < 1 {
		return fmt.Errorf("telegram.max_attempts must be at least 1, got %d", c.Telegram.MaxAttempts)
	}
	if c.Telegram.BackoffMultiplier < 1 {
		return fmt.Errorf("telegram.backoff_multiplier must be at least 1, got %f", c.Telegram.BackoffMultiplier)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.HistoryFile == "" {
			return fmt.Errorf("storage.history_file required for the file backend")
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required for the postgres backend")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	return nil
}

// PollInterval returns the scan tick as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Scan.PollIntervalSeconds) * time.Second
}

// RealertWindow returns the cooldown as a duration; zero disables it.
func (c *Config) RealertWindow() time.Duration {
	return time.Duration(c.Scan.RealertHours * float64(time.Hour))
}

// Retention returns the history retention horizon as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Scan.HistoryRetentionHours * float64(time.Hour))
}

// FetchTimeout returns the per-fetch deadline.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Feed.FetchTimeoutSeconds) * time.Second
}

// SendTimeout returns the per-notification deadline.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Telegram.SendTimeoutSeconds) * time.Second
}
