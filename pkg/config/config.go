package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/signer"
)

// Config holds environment-driven settings for the gateway.
type Config struct {
	Port string

	// Pending request cache
	CacheGracePeriod   time.Duration
	CacheSweepInterval time.Duration

	// Signer pool
	AccountsFile      string
	PoolMinBalance    decimal.Decimal
	PoolTargetBalance decimal.Decimal
	PoolTopupInterval time.Duration

	// Venue adapters
	AdapterTimeout time.Duration
	MockVenue      bool
	MockLatencyMs  int
	MockRateLimit  float64

	// Auth
	JWTSecret string
	APIKey    string

	// Credential sealing: name of the env var holding the base64 master key.
	CredentialKeyEnv string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	minBal, err := getEnvDecimal("POOL_MIN_BALANCE", "0.05")
	if err != nil {
		return nil, err
	}
	targetBal, err := getEnvDecimal("POOL_TARGET_BALANCE", "0.5")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		CacheGracePeriod:   getEnvDuration("CACHE_GRACE_PERIOD", 2*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Second),
		AccountsFile:       getEnv("ACCOUNTS_FILE", "./accounts.yaml"),
		PoolMinBalance:     minBal,
		PoolTargetBalance:  targetBal,
		PoolTopupInterval:  getEnvDuration("POOL_TOPUP_INTERVAL", 30*time.Second),
		AdapterTimeout:     getEnvDuration("ADAPTER_TIMEOUT", 5*time.Second),
		MockVenue:          getEnv("MOCK_VENUE", "true") == "true",
		MockLatencyMs:      getEnvInt("MOCK_VENUE_LATENCY_MS", 5),
		MockRateLimit:      getEnvFloat("MOCK_VENUE_RATE_LIMIT", 50),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		APIKey:             getEnv("API_KEY", "dev-api-key"),
		CredentialKeyEnv:   getEnv("CREDENTIAL_KEY_ENV", "CREDENTIAL_MASTER_KEY"),
	}, nil
}

// LoadAccounts reads the signer account list from a YAML file.
func LoadAccounts(path string) ([]signer.AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var doc struct {
		Accounts []signer.AccountConfig `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	if len(doc.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s: no accounts configured", path)
	}
	return doc.Accounts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDecimal(key, def string) (decimal.Decimal, error) {
	v := getEnv(key, def)
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
