package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Payment     PaymentConfig  `mapstructure:"payment"`
	Explorer    ExplorerConfig `mapstructure:"explorer"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Snapshot    SnapshotConfig `mapstructure:"snapshot"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// PaymentConfig describes the receiving wallet and the matching rules.
type PaymentConfig struct {
	ReceivingAddress string `mapstructure:"receiving_address"`
	TokenContract    string `mapstructure:"token_contract"` // empty selects native-coin mode
	UnitSize         int64  `mapstructure:"unit_size"`
	UnitPrice        string `mapstructure:"unit_price"` // price per unit_size units, decimal string
	OffsetStep       string `mapstructure:"offset_step"`
	Tolerance        string `mapstructure:"tolerance"`
	OrderTimeout     int    `mapstructure:"order_timeout"` // seconds
	ProcessedCap     int    `mapstructure:"processed_cap"`
	CandidateLimit   int    `mapstructure:"candidate_limit"`
}

// ExplorerConfig configures the ledger-explorer sources, primary first.
type ExplorerConfig struct {
	TronscanBaseURL string `mapstructure:"tronscan_base_url"`
	TrongridBaseURL string `mapstructure:"trongrid_base_url"`
	TrongridAPIKey  string `mapstructure:"trongrid_api_key"`
	PageSize        int    `mapstructure:"page_size"`
	PollInterval    int    `mapstructure:"poll_interval"` // seconds
	RequestTimeout  int    `mapstructure:"request_timeout"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	BaseURL        string `mapstructure:"base_url"`
	OperatorChatID int64  `mapstructure:"operator_chat_id"`
}

type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("payment.unit_size", 100)
	viper.SetDefault("payment.unit_price", "7.21")
	viper.SetDefault("payment.offset_step", "0.001")
	viper.SetDefault("payment.tolerance", "0.01")
	viper.SetDefault("payment.order_timeout", 900) // 15 minutes
	viper.SetDefault("payment.processed_cap", 512)
	viper.SetDefault("payment.candidate_limit", 3)

	viper.SetDefault("explorer.tronscan_base_url", "https://apilist.tronscanapi.com")
	viper.SetDefault("explorer.trongrid_base_url", "https://api.trongrid.io")
	viper.SetDefault("explorer.page_size", 50)
	viper.SetDefault("explorer.poll_interval", 10)
	viper.SetDefault("explorer.request_timeout", 15)

	viper.SetDefault("telegram.base_url", "https://api.telegram.org")

	viper.SetDefault("snapshot.path", "data/engine_state.json")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 0.1)
	viper.SetDefault("tracing.insecure", true)
}

func validate(config *Config) error {
	if config.Payment.ReceivingAddress == "" {
		return fmt.Errorf("payment.receiving_address is required")
	}
	if config.Payment.UnitSize <= 0 {
		return fmt.Errorf("payment.unit_size must be positive")
	}
	if config.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if config.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	if config.Explorer.PollInterval <= 0 {
		return fmt.Errorf("explorer.poll_interval must be positive")
	}
	return nil
}

// OrderTimeoutDuration returns the order timeout as a duration.
func (c *PaymentConfig) OrderTimeoutDuration() time.Duration {
	return time.Duration(c.OrderTimeout) * time.Second
}

// PollIntervalDuration returns the polling cadence as a duration.
func (c *ExplorerConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// RequestTimeoutDuration returns the per-request explorer timeout.
func (c *ExplorerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
