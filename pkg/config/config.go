package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the orchestrator service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Cofhe      CofheConfig      `mapstructure:"cofhe"`
	Redeem     RedeemConfig     `mapstructure:"redeem"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// DeploymentsFile points at the YAML address book for the target network.
	DeploymentsFile string `mapstructure:"deployments_file"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains connection settings for the workflow journal database
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// EthereumConfig contains ledger client settings
type EthereumConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	ChainID            int64         `mapstructure:"chain_id"`
	SignerPrivateKey   string        `mapstructure:"signer_private_key"`
	GasLimit           uint64        `mapstructure:"gas_limit"`
	MaxGasPrice        string        `mapstructure:"max_gas_price"`
	ConfirmationBlocks uint64        `mapstructure:"confirmation_blocks"`
	ReceiptTimeout     time.Duration `mapstructure:"receipt_timeout"`
	PollingInterval    time.Duration `mapstructure:"polling_interval"`
}

// CofheConfig contains confidential coprocessor client settings
type CofheConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PermitToken    string        `mapstructure:"permit_token"`
	SealingSecret  string        `mapstructure:"sealing_secret"`
	SecurityZone   uint8         `mapstructure:"security_zone"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RedeemConfig contains the claim polling settings for redemption payouts
type RedeemConfig struct {
	MaxClaimAttempts int           `mapstructure:"max_claim_attempts"`
	ClaimDelay       time.Duration `mapstructure:"claim_delay"`
}

// AuthConfig contains API authentication settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "bond_orchestrator")

	// Ethereum defaults
	viper.SetDefault("ethereum.confirmation_blocks", 1)
	viper.SetDefault("ethereum.gas_limit", 16000000)
	viper.SetDefault("ethereum.receipt_timeout", "180s")
	viper.SetDefault("ethereum.polling_interval", "2s")

	// Cofhe defaults
	viper.SetDefault("cofhe.security_zone", 0)
	viper.SetDefault("cofhe.request_timeout", "30s")

	// Redeem claim polling defaults
	viper.SetDefault("redeem.max_claim_attempts", 30)
	viper.SetDefault("redeem.claim_delay", "4s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	viper.SetDefault("deployments_file", "deployments.yaml")
}

func validate(config *Config) error {
	if config.Ethereum.RPCURL == "" {
		return fmt.Errorf("ethereum.rpc_url is required")
	}
	if config.Ethereum.ChainID == 0 {
		return fmt.Errorf("ethereum.chain_id is required")
	}
	if config.Ethereum.SignerPrivateKey == "" {
		return fmt.Errorf("ethereum.signer_private_key is required")
	}
	if config.Cofhe.BaseURL == "" {
		return fmt.Errorf("cofhe.base_url is required")
	}
	if config.DeploymentsFile == "" {
		return fmt.Errorf("deployments_file is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
