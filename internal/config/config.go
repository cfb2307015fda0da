// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Tokens    []TokenConfig   `toml:"tokens"`
	Markets   MarketsConfig   `toml:"markets"`
	Trading   TradingConfig   `toml:"trading"`
	Optimizer OptimizerConfig `toml:"optimizer"`
	Feed      FeedConfig      `toml:"feed"`
	Executor  ExecutorConfig  `toml:"executor"`
	Cache     CacheConfig     `toml:"cache"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	// Environment selects the deployment profile, "development" or
	// "production". It is surfaced in logs and status output.
	Environment string `toml:"environment"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	Address          string `toml:"address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// TokenConfig describes one token in the tradable universe.
type TokenConfig struct {
	Name     string `toml:"name"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// MarketsConfig lists the venues the bot quotes and trades on.
type MarketsConfig struct {
	AMM  []AMMMarketConfig  `toml:"amm"`
	Book []BookMarketConfig `toml:"book"`
}

// AMMMarketConfig describes a constant-product exchange.
type AMMMarketConfig struct {
	Name        string `toml:"name"`
	Chain       string `toml:"chain"`
	ChainID     int64  `toml:"chain_id"`
	RPCURL      string `toml:"rpc_url"`
	Router      string `toml:"router"`
	Factory     string `toml:"factory"`
	// Flash is an optional flash-route contract for atomic multi-venue
	// routes; empty disables them on this venue's chain.
	Flash       string   `toml:"flash"`
	FeePerMille int64    `toml:"fee_per_mille"`
	BlockTime   duration `toml:"block_time"`
}

// BookMarketConfig describes a flat-priced order-book exchange.
type BookMarketConfig struct {
	Name      string  `toml:"name"`
	BaseURL   string  `toml:"base_url"`
	ApiKey    string  `toml:"api_key"`
	ApiSecret string  `toml:"api_secret"`
	Fee       float64 `toml:"fee"`
	FixedCost int64   `toml:"fixed_cost"`
}

// TradingConfig holds the decision loop's parameters.
type TradingConfig struct {
	// Strategy selects the detection strategy: "pairwise", "bellman-ford",
	// or "floyd-warshall".
	Strategy     string   `toml:"strategy"`
	AutoExecute  bool     `toml:"auto_execute"`
	MinBet       string   `toml:"min_bet"`
	TickInterval duration `toml:"tick_interval"`
	MinRatio     float64  `toml:"min_ratio"`
	// SafetyFactor shrinks every sized trade to leave headroom against
	// liquidity moving between sizing and dispatch. Must be in (0, 1].
	SafetyFactor float64 `toml:"safety_factor"`
	// CostMargin scales estimated execution cost before it is compared to
	// expected profit; values above 1 demand profit clear of cost by that
	// multiple. Must be > 0.
	CostMargin float64 `toml:"cost_margin"`
}

// OptimizerConfig holds trade-size search parameters.
type OptimizerConfig struct {
	Start       string   `toml:"start"`
	InitialStep string   `toml:"initial_step"`
	Timeout     duration `toml:"timeout"`
}

// FeedConfig holds quote-polling parameters.
type FeedConfig struct {
	ProbeAmount string   `toml:"probe_amount"`
	Interval    duration `toml:"interval"`
}

// ExecutorConfig holds execution parameters.
type ExecutorConfig struct {
	LegDeadline duration `toml:"leg_deadline"`
	SlippageBps int64    `toml:"slippage_bps"`
}

// CacheConfig holds TTLs for the in-process caches and the persistence
// cadence for the sub-stores.
type CacheConfig struct {
	LiquidityTTL    duration `toml:"liquidity_ttl"`
	BetSizeTTL      duration `toml:"bet_size_ttl"`
	PersistInterval duration `toml:"persist_interval"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	ForcePathStyle bool     `toml:"force_path_style"`
	ArchiveEvery   duration `toml:"archive_every"`
}

// ServerConfig holds WebSocket server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			Strategy:     "pairwise",
			AutoExecute:  true,
			MinBet:       "1000000",
			TickInterval: duration{2 * time.Second},
			MinRatio:     1.001,
			SafetyFactor: 0.97,
			CostMargin:   1.0,
		},
		Optimizer: OptimizerConfig{
			Start:       "100000000",
			InitialStep: "25000000",
			Timeout:     duration{5 * time.Second},
		},
		Feed: FeedConfig{
			ProbeAmount: "100000000",
			Interval:    duration{time.Second},
		},
		Executor: ExecutorConfig{
			LegDeadline: duration{30 * time.Second},
			SlippageBps: 50,
		},
		Cache: CacheConfig{
			LiquidityTTL:    duration{60 * time.Second},
			BetSizeTTL:      duration{30 * time.Second},
			PersistInterval: duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbbot-data",
			ForcePathStyle: true,
			ArchiveEvery:   duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"executed", "failed", "error"},
		},
		Mode:        "full",
		LogLevel:    "info",
		Environment: "development",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validEnvironments enumerates the accepted values for Config.Environment.
var validEnvironments = map[string]bool{
	"development": true,
	"production":  true,
}

// validStrategies enumerates the accepted values for Trading.Strategy.
var validStrategies = map[string]bool{
	"pairwise":       true,
	"bellman-ford":   true,
	"floyd-warshall": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Environment
	if !validEnvironments[strings.ToLower(c.Environment)] {
		errs = append(errs, fmt.Sprintf("unknown environment %q (valid: development, production)", c.Environment))
	}

	// Wallet. Trading modes that auto-execute need a key from somewhere.
	needsVenues := c.Mode == "trade" || c.Mode == "full"
	if needsVenues && c.Trading.AutoExecute {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Tokens. The rate graph needs at least one pair.
	if needsVenues && len(c.Tokens) < 2 {
		errs = append(errs, fmt.Sprintf("tokens: at least 2 tokens are required for mode %s, got %d", c.Mode, len(c.Tokens)))
	}
	seenToken := map[string]bool{}
	for i, tok := range c.Tokens {
		if tok.Name == "" {
			errs = append(errs, fmt.Sprintf("tokens[%d]: name must not be empty", i))
		}
		if tok.Address == "" {
			errs = append(errs, fmt.Sprintf("tokens[%d]: address must not be empty", i))
		}
		if tok.Decimals < 0 || tok.Decimals > 36 {
			errs = append(errs, fmt.Sprintf("tokens[%d]: decimals must be 0-36, got %d", i, tok.Decimals))
		}
		key := strings.ToLower(tok.Address)
		if seenToken[key] {
			errs = append(errs, fmt.Sprintf("tokens[%d]: duplicate address %s", i, tok.Address))
		}
		seenToken[key] = true
	}

	// Markets
	if needsVenues && len(c.Markets.AMM)+len(c.Markets.Book) == 0 {
		errs = append(errs, "markets: at least one amm or book venue is required for mode "+c.Mode)
	}
	seenMarket := map[string]bool{}
	for i, m := range c.Markets.AMM {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("markets.amm[%d]: name must not be empty", i))
		}
		if m.Router == "" {
			errs = append(errs, fmt.Sprintf("markets.amm[%d]: router must not be empty", i))
		}
		if m.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("markets.amm[%d]: rpc_url must not be empty", i))
		}
		if m.FeePerMille < 0 || m.FeePerMille >= 1000 {
			errs = append(errs, fmt.Sprintf("markets.amm[%d]: fee_per_mille must be 0-999, got %d", i, m.FeePerMille))
		}
		if seenMarket[m.Name] {
			errs = append(errs, fmt.Sprintf("markets.amm[%d]: duplicate name %q", i, m.Name))
		}
		seenMarket[m.Name] = true
	}
	for i, m := range c.Markets.Book {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("markets.book[%d]: name must not be empty", i))
		}
		if m.Fee < 0 || m.Fee >= 1 {
			errs = append(errs, fmt.Sprintf("markets.book[%d]: fee must be in [0, 1), got %g", i, m.Fee))
		}
		if seenMarket[m.Name] {
			errs = append(errs, fmt.Sprintf("markets.book[%d]: duplicate name %q", i, m.Name))
		}
		seenMarket[m.Name] = true
	}

	// Trading
	if !validStrategies[c.Trading.Strategy] {
		errs = append(errs, fmt.Sprintf("trading: unknown strategy %q (valid: pairwise, bellman-ford, floyd-warshall)", c.Trading.Strategy))
	}
	if !validAmount(c.Trading.MinBet) {
		errs = append(errs, fmt.Sprintf("trading: min_bet must be a positive integer, got %q", c.Trading.MinBet))
	}
	if c.Trading.TickInterval.Duration <= 0 {
		errs = append(errs, "trading: tick_interval must be > 0")
	}
	if c.Trading.MinRatio <= 1 {
		errs = append(errs, fmt.Sprintf("trading: min_ratio must be > 1, got %g", c.Trading.MinRatio))
	}
	if c.Trading.SafetyFactor <= 0 || c.Trading.SafetyFactor > 1 {
		errs = append(errs, fmt.Sprintf("trading: safety_factor must be in (0, 1], got %g", c.Trading.SafetyFactor))
	}
	if c.Trading.CostMargin <= 0 {
		errs = append(errs, fmt.Sprintf("trading: cost_margin must be > 0, got %g", c.Trading.CostMargin))
	}

	// Optimizer
	if !validAmount(c.Optimizer.Start) {
		errs = append(errs, fmt.Sprintf("optimizer: start must be a positive integer, got %q", c.Optimizer.Start))
	}
	if !validAmount(c.Optimizer.InitialStep) {
		errs = append(errs, fmt.Sprintf("optimizer: initial_step must be a positive integer, got %q", c.Optimizer.InitialStep))
	}
	if c.Optimizer.Timeout.Duration <= 0 {
		errs = append(errs, "optimizer: timeout must be > 0")
	}

	// Feed
	if !validAmount(c.Feed.ProbeAmount) {
		errs = append(errs, fmt.Sprintf("feed: probe_amount must be a positive integer, got %q", c.Feed.ProbeAmount))
	}
	if c.Feed.Interval.Duration <= 0 {
		errs = append(errs, "feed: interval must be > 0")
	}

	// Executor
	if c.Executor.SlippageBps < 0 || c.Executor.SlippageBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("executor: slippage_bps must be 0-9999, got %d", c.Executor.SlippageBps))
	}

	// Cache
	if c.Cache.LiquidityTTL.Duration <= 0 {
		errs = append(errs, "cache: liquidity_ttl must be > 0")
	}
	if c.Cache.BetSizeTTL.Duration <= 0 {
		errs = append(errs, "cache: bet_size_ttl must be > 0")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validAmount reports whether s is a positive base-10 integer. Amounts are
// strings because token units routinely exceed int64.
func validAmount(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.TrimLeft(s, "0") != ""
}
