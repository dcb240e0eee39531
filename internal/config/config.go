package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env               string
	Port              string
	DatabaseURL       string
	RedisURL          string
	FallbackStorePath string

	BlobStoreURL   string // IPFS HTTP API; local directory store when empty
	BlobGatewayURL string
	BlobLocalDir   string

	ScorerBaseURL       string
	ScorerAPIKey        string // heuristic scorer only when empty
	ScorerModel         string
	ScorerTimeout       time.Duration
	ApprovalScore       int
	CollaboratorTimeout time.Duration

	ChainRPCURL           string
	ChainID               int64
	CreditContractAddress string
	CreditTokenDecimals   int32
	ChainTimeout          time.Duration

	DefaultInterestRate         decimal.Decimal
	DefaultLiquidationThreshold decimal.Decimal

	LockTTL            time.Duration
	LogLevel           string
	LogFile            string
	CORSAllowedOrigins []string
	HealthAdminKey     string
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("FALLBACK_STORE_PATH", "data/store.json")
	viper.SetDefault("BLOB_STORE_URL", "")
	viper.SetDefault("BLOB_GATEWAY_URL", "")
	viper.SetDefault("BLOB_LOCAL_DIR", "data/blobs")
	viper.SetDefault("SCORER_BASE_URL", "https://generativelanguage.googleapis.com")
	viper.SetDefault("SCORER_API_KEY", "")
	viper.SetDefault("SCORER_MODEL", "gemini-1.5-flash")
	viper.SetDefault("SCORER_TIMEOUT", "30s")
	viper.SetDefault("VERIFICATION_APPROVAL_SCORE", 70)
	viper.SetDefault("CHAIN_RPC_URL", "")
	viper.SetDefault("CHAIN_ID", 11155111)
	viper.SetDefault("CREDIT_CONTRACT_ADDRESS", "")
	viper.SetDefault("CREDIT_TOKEN_DECIMALS", 0)
	viper.SetDefault("CHAIN_TIMEOUT", "5s")
	viper.SetDefault("LENDING_DEFAULT_INTEREST_RATE", "0.08")
	viper.SetDefault("LENDING_DEFAULT_LIQUIDATION_THRESHOLD", "0.75")
	viper.SetDefault("LOCK_TTL", "10s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FILE", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("HEALTH_ADMIN_KEY", "")
	viper.SetDefault("HEALTH_COLLABORATOR_TIMEOUT", "3s")
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults()

	rate, err := decimal.NewFromString(viper.GetString("LENDING_DEFAULT_INTEREST_RATE"))
	if err != nil {
		return nil, fmt.Errorf("LENDING_DEFAULT_INTEREST_RATE: %w", err)
	}
	threshold, err := decimal.NewFromString(viper.GetString("LENDING_DEFAULT_LIQUIDATION_THRESHOLD"))
	if err != nil {
		return nil, fmt.Errorf("LENDING_DEFAULT_LIQUIDATION_THRESHOLD: %w", err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("LENDING_DEFAULT_INTEREST_RATE: must not be negative, got %s", rate)
	}
	if threshold.Sign() <= 0 || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("LENDING_DEFAULT_LIQUIDATION_THRESHOLD: must be in (0, 1], got %s", threshold)
	}

	return &Config{
		Env:               strings.ToLower(viper.GetString("APP_ENV")),
		Port:              viper.GetString("PORT"),
		DatabaseURL:       viper.GetString("DATABASE_URL"),
		RedisURL:          viper.GetString("REDIS_URL"),
		FallbackStorePath: viper.GetString("FALLBACK_STORE_PATH"),

		BlobStoreURL:   viper.GetString("BLOB_STORE_URL"),
		BlobGatewayURL: viper.GetString("BLOB_GATEWAY_URL"),
		BlobLocalDir:   viper.GetString("BLOB_LOCAL_DIR"),

		ScorerBaseURL:       viper.GetString("SCORER_BASE_URL"),
		ScorerAPIKey:        viper.GetString("SCORER_API_KEY"),
		ScorerModel:         viper.GetString("SCORER_MODEL"),
		ScorerTimeout:       viper.GetDuration("SCORER_TIMEOUT"),
		ApprovalScore:       viper.GetInt("VERIFICATION_APPROVAL_SCORE"),
		CollaboratorTimeout: viper.GetDuration("HEALTH_COLLABORATOR_TIMEOUT"),

		ChainRPCURL:           viper.GetString("CHAIN_RPC_URL"),
		ChainID:               viper.GetInt64("CHAIN_ID"),
		CreditContractAddress: viper.GetString("CREDIT_CONTRACT_ADDRESS"),
		CreditTokenDecimals:   viper.GetInt32("CREDIT_TOKEN_DECIMALS"),
		ChainTimeout:          viper.GetDuration("CHAIN_TIMEOUT"),

		DefaultInterestRate:         rate,
		DefaultLiquidationThreshold: threshold,

		LockTTL:            viper.GetDuration("LOCK_TTL"),
		LogLevel:           viper.GetString("LOG_LEVEL"),
		LogFile:            viper.GetString("LOG_FILE"),
		CORSAllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		HealthAdminKey:     viper.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
