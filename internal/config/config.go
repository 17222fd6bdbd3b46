package config

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"chain-price-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Moralis   MoralisConfig   `mapstructure:"moralis"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Swap      SwapConfig      `mapstructure:"swap"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MoralisConfig covers the token price provider.
type MoralisConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	WETHAddress    string        `mapstructure:"weth_address"`
	WMATICAddress  string        `mapstructure:"wmatic_address"`
	WBTCAddress    string        `mapstructure:"wbtc_address"`
}

// AlertingConfig defines thresholds and mail routing.
type AlertingConfig struct {
	VolatilityPct float64    `mapstructure:"volatility_pct"`
	OperatorEmail string     `mapstructure:"operator_email"`
	SMTP          SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig parameterises the outbound mail transport.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SwapConfig tunes the ETH to BTC quote.
type SwapConfig struct {
	FeePct float64 `mapstructure:"fee_pct"`
}

// HTTPConfig governs the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chainwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63686169))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("moralis.base_url", "https://deep-index.moralis.io/api/v2.2")
	v.SetDefault("moralis.request_timeout", "10s")
	v.SetDefault("moralis.user_agent", "chainwatcher/1.0")
	v.SetDefault("moralis.weth_address", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("moralis.wmatic_address", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	v.SetDefault("moralis.wbtc_address", "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")

	v.SetDefault("alerting.volatility_pct", 0.03)
	v.SetDefault("alerting.smtp.port", 587)

	v.SetDefault("swap.fee_pct", 0.03)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "5s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.VolatilityPct < 0 {
		return fmt.Errorf("alerting.volatility_pct cannot be negative")
	}
	if c.Swap.FeePct < 0 || c.Swap.FeePct >= 1 {
		return fmt.Errorf("swap.fee_pct must be in [0, 1)")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	for name, addr := range map[string]string{
		"moralis.weth_address":   c.Moralis.WETHAddress,
		"moralis.wmatic_address": c.Moralis.WMATICAddress,
		"moralis.wbtc_address":   c.Moralis.WBTCAddress,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid contract address", name)
		}
	}
	if c.Alerting.OperatorEmail != "" {
		if _, err := mail.ParseAddress(c.Alerting.OperatorEmail); err != nil {
			return fmt.Errorf("alerting.operator_email is not a valid address: %w", err)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
