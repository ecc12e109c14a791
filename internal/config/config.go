// Package config loads the orchestrator's configuration from environment
// variables (with .env support) and an optional YAML file for the
// structured, rarely-changed tables (chain profiles, the funding/execution
// allowlist) that don't belong as individual environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
)

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// QuoteConfig drives pricing and TTL.
type QuoteConfig struct {
	ServiceFeeRateBps int     `yaml:"service_fee_rate_bps" env:"QUOTE_SERVICE_FEE_BPS"`
	MaxSlippagePct    float64 `yaml:"max_slippage_pct" env:"QUOTE_MAX_SLIPPAGE_PCT"`
	TTLAboveFivePct   int     `yaml:"ttl_above_5pct_seconds" env:"QUOTE_TTL_ABOVE_5PCT_SECONDS"`
	TTLTwoToFivePct   int     `yaml:"ttl_2_5pct_seconds" env:"QUOTE_TTL_2_5PCT_SECONDS"`
	TTLOneToTwoPct    int     `yaml:"ttl_1_2pct_seconds" env:"QUOTE_TTL_1_2PCT_SECONDS"`
	TTLAtOrBelowOne   int     `yaml:"ttl_le_1pct_seconds" env:"QUOTE_TTL_LE_1PCT_SECONDS"`
}

func (q QuoteConfig) Normalized() QuoteConfig {
	if q.ServiceFeeRateBps <= 0 {
		q.ServiceFeeRateBps = 10
	}
	if q.MaxSlippagePct <= 0 {
		q.MaxSlippagePct = 0.01
	}
	if q.TTLAboveFivePct <= 0 {
		q.TTLAboveFivePct = 120
	}
	if q.TTLTwoToFivePct <= 0 {
		q.TTLTwoToFivePct = 180
	}
	if q.TTLOneToTwoPct <= 0 {
		q.TTLOneToTwoPct = 240
	}
	if q.TTLAtOrBelowOne <= 0 {
		q.TTLAtOrBelowOne = 300
	}
	return q
}

// RiskConfig carries per-chain daily spending limits and breaker tuning.
type RiskConfig struct {
	DailyLimits           map[domain.Chain]string `yaml:"daily_limits"`
	DefaultDailyLimit      string                  `yaml:"default_daily_limit" env:"RISK_DEFAULT_DAILY_LIMIT"`
	MaxConsecutiveFailures int                     `yaml:"max_consecutive_failures" env:"RISK_MAX_CONSECUTIVE_FAILURES"`
	CircuitBreakerEnabled  bool                    `yaml:"circuit_breaker_enabled" env:"RISK_CIRCUIT_BREAKER_ENABLED"`
}

func (r RiskConfig) Normalized() RiskConfig {
	if r.DefaultDailyLimit == "" {
		r.DefaultDailyLimit = "1000000"
	}
	if r.MaxConsecutiveFailures <= 0 {
		r.MaxConsecutiveFailures = 5
	}
	return r
}

// OracleConfig drives the price oracle's caching and staleness behavior.
type OracleConfig struct {
	CacheTTLSeconds       int    `yaml:"cache_ttl_seconds" env:"ORACLE_CACHE_TTL_SECONDS"`
	StalenessSeconds      int    `yaml:"staleness_seconds" env:"ORACLE_STALENESS_SECONDS"`
	RedisAddr             string `yaml:"redis_addr" env:"ORACLE_REDIS_ADDR"`
	SourceURL             string `yaml:"source_url" env:"ORACLE_SOURCE_URL"`
}

func (o OracleConfig) Normalized() OracleConfig {
	if o.CacheTTLSeconds <= 0 {
		o.CacheTTLSeconds = 5
	}
	if o.StalenessSeconds <= 0 {
		o.StalenessSeconds = 5
	}
	return o
}

// WebhookConfig carries the shared secret used to authenticate inbound
// payment webhooks.
type WebhookConfig struct {
	SharedSecret string `yaml:"shared_secret" env:"WEBHOOK_SHARED_SECRET"`
}

// RetryConfig drives the webhook retry loop's backoff and circuit tripping.
type RetryConfig struct {
	MaxRetries             int `yaml:"max_retries" env:"RETRY_MAX_RETRIES"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" env:"RETRY_MAX_CONSECUTIVE_FAILURES"`
	InitialBackoffSeconds  int `yaml:"initial_backoff_seconds" env:"RETRY_INITIAL_BACKOFF_SECONDS"`
	MaxBackoffSeconds      int `yaml:"max_backoff_seconds" env:"RETRY_MAX_BACKOFF_SECONDS"`
}

func (r RetryConfig) Normalized() RetryConfig {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 3
	}
	if r.MaxConsecutiveFailures <= 0 {
		r.MaxConsecutiveFailures = 5
	}
	if r.InitialBackoffSeconds <= 0 {
		r.InitialBackoffSeconds = 1
	}
	if r.MaxBackoffSeconds <= 0 {
		r.MaxBackoffSeconds = 60
	}
	return r
}

// SettlementConfig drives the settlement aggregator's schedule.
type SettlementConfig struct {
	CronSchedule   string `yaml:"cron_schedule" env:"SETTLEMENT_CRON_SCHEDULE"`
	MinimumAmount  string `yaml:"minimum_amount" env:"SETTLEMENT_MINIMUM_AMOUNT"`
}

func (s SettlementConfig) Normalized() SettlementConfig {
	if s.CronSchedule == "" {
		s.CronSchedule = "0 0 * * *" // daily at 00:00 UTC
	}
	if s.MinimumAmount == "" {
		s.MinimumAmount = "1"
	}
	return s
}

// TreasuryConfig carries the per-chain treasury signing secrets. These are
// env-only by design: they must never round-trip through the YAML file.
type TreasuryConfig struct {
	SolanaPrivateKey  string `env:"TREASURY_SOLANA_PRIVATE_KEY"`
	StellarSecretSeed string `env:"TREASURY_STELLAR_SECRET_SEED"`
	NearAccountID     string `env:"TREASURY_NEAR_ACCOUNT_ID"`
	NearSecretKey     string `env:"TREASURY_NEAR_SECRET_KEY"`
}

// ChainConfig mirrors domain.ChainProfile for YAML/env loading.
type ChainConfig struct {
	Chain           string  `yaml:"chain"`
	CostModel       string  `yaml:"cost_model"`
	PaymentScheme   string  `yaml:"payment_scheme"`
	UnitPrice       float64 `yaml:"unit_price"`
	FixedOverhead   float64 `yaml:"fixed_overhead"`
	PriorityBuffer  float64 `yaml:"priority_buffer"`
	MinComputeUnits int64   `yaml:"min_compute_units"`
	MaxComputeUnits int64   `yaml:"max_compute_units"`
	BaseFee         float64 `yaml:"base_fee"`
	FixedFeeMult    float64 `yaml:"fixed_fee_multiplier"`
	BaseGas         float64 `yaml:"base_gas"`
	ExpectedHops    int     `yaml:"expected_hops"`
	GasPrice        float64 `yaml:"gas_price"`
	GasScale        float64 `yaml:"gas_scale"`
	GasMeterMult    float64 `yaml:"gas_meter_multiplier"`
	TreasuryAccount string  `yaml:"treasury_account"`
	EscrowRoot      string  `yaml:"escrow_root"`
	Network         string  `yaml:"network"`
	RPCURL          string  `yaml:"rpc_url"`
}

// ChainPairConfig is one entry of the funding→execution allowlist.
type ChainPairConfig struct {
	Funding   string `yaml:"funding"`
	Execution string `yaml:"execution"`
}

// Config is the orchestrator's top-level configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Database   DatabaseConfig    `yaml:"database"`
	Logging    LoggingConfig     `yaml:"logging"`
	Quote      QuoteConfig       `yaml:"quote"`
	Risk       RiskConfig        `yaml:"risk"`
	Oracle     OracleConfig      `yaml:"oracle"`
	Webhook    WebhookConfig     `yaml:"webhook"`
	Retry      RetryConfig       `yaml:"retry"`
	Settlement SettlementConfig  `yaml:"settlement"`
	Treasury   TreasuryConfig    `yaml:"-"`
	Chains     []ChainConfig     `yaml:"chains"`
	ChainPairs []ChainPairConfig `yaml:"chain_pairs"`
}

// New returns a Config populated with defaults, mirroring this system's
// three supported chains and their allowlisted funding/execution pairs.
func New() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 300, MigrateOnStart: true},
		Logging:  LoggingConfig{Level: "info", Format: "text", Output: "stdout", FilePrefix: "orchestrator"},
		Quote:    QuoteConfig{}.Normalized(),
		Risk: RiskConfig{
			DailyLimits: map[domain.Chain]string{
				domain.ChainSolana:  "100",
				domain.ChainStellar: "1000000",
				domain.ChainNear:    "10000",
			},
		}.Normalized(),
		Oracle:     OracleConfig{}.Normalized(),
		Retry:      RetryConfig{}.Normalized(),
		Settlement: SettlementConfig{}.Normalized(),
		Chains: []ChainConfig{
			{Chain: "solana", CostModel: "compute_metered", PaymentScheme: "programmatic_address", UnitPrice: 0.000001, FixedOverhead: 0.00001, PriorityBuffer: 0.20, MinComputeUnits: 1, MaxComputeUnits: 1_400_000},
			{Chain: "stellar", CostModel: "fixed_fee", PaymentScheme: "shared_account", BaseFee: 0.00001, FixedFeeMult: 1.2},
			{Chain: "near", CostModel: "gas_meter", PaymentScheme: "subaccount", BaseGas: 2_428_000_000, ExpectedHops: 1, GasPrice: 1e-10, GasScale: 1e24, GasMeterMult: 1.5},
		},
		ChainPairs: []ChainPairConfig{
			{Funding: "solana", Execution: "stellar"},
			{Funding: "solana", Execution: "near"},
			{Funding: "stellar", Execution: "solana"},
			{Funding: "stellar", Execution: "near"},
			{Funding: "near", Execution: "solana"},
			{Funding: "near", Execution: "stellar"},
		},
	}
}

// Load reads .env, an optional YAML file, then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.Quote = cfg.Quote.Normalized()
	cfg.Risk = cfg.Risk.Normalized()
	cfg.Oracle = cfg.Oracle.Normalized()
	cfg.Retry = cfg.Retry.Normalized()
	cfg.Settlement = cfg.Settlement.Normalized()

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyDatabaseURLOverride(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

// ChainProfiles converts the loaded ChainConfig entries into domain.ChainProfile,
// keyed by chain.
func (c *Config) ChainProfiles() map[domain.Chain]domain.ChainProfile {
	out := make(map[domain.Chain]domain.ChainProfile, len(c.Chains))
	for _, cc := range c.Chains {
		chain := domain.Chain(cc.Chain)
		out[chain] = domain.ChainProfile{
			Chain:           chain,
			CostModel:       domain.CostModel(cc.CostModel),
			PaymentScheme:   domain.PaymentScheme(cc.PaymentScheme),
			UnitPrice:       cc.UnitPrice,
			FixedOverhead:   cc.FixedOverhead,
			PriorityBuffer:  cc.PriorityBuffer,
			MinComputeUnits: cc.MinComputeUnits,
			MaxComputeUnits: cc.MaxComputeUnits,
			BaseFee:         cc.BaseFee,
			FixedFeeMult:    cc.FixedFeeMult,
			BaseGas:         cc.BaseGas,
			ExpectedHops:    cc.ExpectedHops,
			GasPrice:        cc.GasPrice,
			GasScale:        cc.GasScale,
			GasMeterMult:    cc.GasMeterMult,
			TreasuryAccount: cc.TreasuryAccount,
			EscrowRoot:      cc.EscrowRoot,
			Network:         cc.Network,
			RPCURL:          cc.RPCURL,
		}
	}
	return out
}

// Allowlist converts the loaded ChainPairConfig entries into a set keyed by
// domain.ChainPair for O(1) membership checks.
func (c *Config) Allowlist() map[domain.ChainPair]bool {
	out := make(map[domain.ChainPair]bool, len(c.ChainPairs))
	for _, pair := range c.ChainPairs {
		out[domain.ChainPair{Funding: domain.Chain(pair.Funding), Execution: domain.Chain(pair.Execution)}] = true
	}
	return out
}
