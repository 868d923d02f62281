package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	GatewayURL string `env:"GATEWAY_URL" envDefault:"http://mock-gateway:8081"`

	Chain ChainConfig
	Fees  FeeConfig

	CompletionPollInterval time.Duration `env:"COMPLETION_POLL_INTERVAL" envDefault:"2s"`
	CompletionBatchSize    int           `env:"COMPLETION_BATCH_SIZE" envDefault:"10"`
	CompletionLease        time.Duration `env:"COMPLETION_LEASE" envDefault:"5m"`

	DBMaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int           `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int           `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectTimeout   time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
}

// ChainConfig holds per-chain settings. Map values are given as
// "bsc:0xabc,opbnb:0xdef"; token addresses are keyed "chain/TOKEN".
type ChainConfig struct {
	Testnet        bool              `env:"TESTNET" envDefault:"false"`
	RPCURLs        map[string]string `env:"RPC_URLS" envKeyValSeparator:"|"`
	VaultAddresses map[string]string `env:"VAULT_ADDRESSES" envKeyValSeparator:":"`
	TokenAddresses map[string]string `env:"TOKEN_ADDRESSES" envKeyValSeparator:":"`
	SignerKey      string            `env:"VAULT_SIGNER_KEY"`
	RPCTimeout     time.Duration     `env:"RPC_TIMEOUT" envDefault:"10s"`
	ReceiptTimeout time.Duration     `env:"RECEIPT_TIMEOUT" envDefault:"2m"`
	DecimalsCache  int               `env:"TOKEN_DECIMALS_CACHE_SIZE" envDefault:"64"`
}

// FeeConfig is the credit-to-token fee schedule. Percentages are fractions
// (0.02 = 2%).
type FeeConfig struct {
	BaseRate         float64 `env:"FEE_BASE_RATE" envDefault:"0.01"`
	OperationalFee   float64 `env:"FEE_OPERATIONAL" envDefault:"0"`
	SmallTxFeePct    float64 `env:"FEE_SMALL_TX_PCT" envDefault:"0"`
	LargeTxFeePct    float64 `env:"FEE_LARGE_TX_PCT" envDefault:"0"`
	LargeTxThreshold float64 `env:"FEE_LARGE_TX_THRESHOLD" envDefault:"500"`
	MinimumAmount    float64 `env:"FEE_MINIMUM_AMOUNT" envDefault:"0"`
	AmountScale      int32   `env:"AMOUNT_SCALE" envDefault:"6"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (f FeeConfig) Validate() error {
	var errs []error
	if f.BaseRate <= 0 {
		errs = append(errs, errors.New("FEE_BASE_RATE must be positive"))
	}
	if f.OperationalFee < 0 {
		errs = append(errs, errors.New("FEE_OPERATIONAL must not be negative"))
	}
	if f.SmallTxFeePct < 0 || f.SmallTxFeePct >= 1 {
		errs = append(errs, errors.New("FEE_SMALL_TX_PCT must be in [0, 1)"))
	}
	if f.LargeTxFeePct < 0 || f.LargeTxFeePct >= 1 {
		errs = append(errs, errors.New("FEE_LARGE_TX_PCT must be in [0, 1)"))
	}
	if f.LargeTxFeePct > f.SmallTxFeePct {
		errs = append(errs, errors.New("FEE_LARGE_TX_PCT must not exceed FEE_SMALL_TX_PCT"))
	}
	if f.MinimumAmount < 0 {
		errs = append(errs, errors.New("FEE_MINIMUM_AMOUNT must not be negative"))
	}
	if f.AmountScale < 0 || f.AmountScale > 18 {
		errs = append(errs, errors.New("AMOUNT_SCALE must be in [0, 18]"))
	}
	return errors.Join(errs...)
}

// CLIConfig is the subset settlectl needs. Secrets the CLI does not use are
// optional here.
type CLIConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Chain       ChainConfig
}

func LoadCLI() (*CLIConfig, error) {
	cfg, err := env.ParseAs[CLIConfig]()
	if err != nil {
		return nil, fmt.Errorf("config.LoadCLI: %w", err)
	}
	return &cfg, nil
}
