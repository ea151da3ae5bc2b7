package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Engine   EngineConfig
	Log      LogConfig
	Store    StoreConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	OperatorKey  string // shared key for operations routes; empty disables them
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the connection string understood by lib/pq.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// EngineConfig holds the dispatch engine tunables.
type EngineConfig struct {
	CommissionRate     float64
	MinDeliveryEarning float64
	PoolPageSize       int
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	PoolCacheTTL       time.Duration
	ReconcileInterval  time.Duration
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string // console or json
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string // postgres or memory
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"server.port":                 "SERVER_PORT",
	"server.read_timeout":         "SERVER_READ_TIMEOUT",
	"server.write_timeout":        "SERVER_WRITE_TIMEOUT",
	"server.operator_key":         "OPERATOR_KEY",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.sslmode":            "DB_SSLMODE",
	"redis.addr":                  "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"newrelic.app_name":           "NEW_RELIC_APP_NAME",
	"newrelic.license_key":        "NEW_RELIC_LICENSE_KEY",
	"newrelic.enabled":            "NEW_RELIC_ENABLED",
	"engine.commission_rate":      "ENGINE_COMMISSION_RATE",
	"engine.min_delivery_earning": "ENGINE_MIN_DELIVERY_EARNING",
	"engine.pool_page_size":       "ENGINE_POOL_PAGE_SIZE",
	"engine.retry_attempts":       "ENGINE_RETRY_ATTEMPTS",
	"engine.retry_base_delay":     "ENGINE_RETRY_BASE_DELAY",
	"engine.pool_cache_ttl":       "POOL_CACHE_TTL",
	"engine.reconcile_interval":   "RECONCILE_INTERVAL",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"store.driver":                "STORE_DRIVER",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.operator_key", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "dispatch")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("newrelic.app_name", "dispatch-engine")
	v.SetDefault("newrelic.license_key", "")
	v.SetDefault("newrelic.enabled", false)

	v.SetDefault("engine.commission_rate", 0.15)
	v.SetDefault("engine.min_delivery_earning", 0.0)
	v.SetDefault("engine.pool_page_size", 50)
	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.retry_base_delay", 100*time.Millisecond)
	v.SetDefault("engine.pool_cache_ttl", 2*time.Second)
	v.SetDefault("engine.reconcile_interval", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", StoreDriverPostgres)
}

// Load loads configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence. An empty cfgFile
// searches for config.yaml in the working directory and ./config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			OperatorKey:  v.GetString("server.operator_key"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("newrelic.app_name"),
			LicenseKey: v.GetString("newrelic.license_key"),
			Enabled:    v.GetBool("newrelic.enabled"),
		},
		Engine: EngineConfig{
			CommissionRate:     v.GetFloat64("engine.commission_rate"),
			MinDeliveryEarning: v.GetFloat64("engine.min_delivery_earning"),
			PoolPageSize:       v.GetInt("engine.pool_page_size"),
			RetryAttempts:      v.GetInt("engine.retry_attempts"),
			RetryBaseDelay:     v.GetDuration("engine.retry_base_delay"),
			PoolCacheTTL:       v.GetDuration("engine.pool_cache_ttl"),
			ReconcileInterval:  v.GetDuration("engine.reconcile_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Engine.CommissionRate < 0 || c.Engine.CommissionRate > 1 {
		return fmt.Errorf("commission rate %v out of range [0,1]", c.Engine.CommissionRate)
	}
	if c.Engine.MinDeliveryEarning < 0 {
		return fmt.Errorf("min delivery earning must not be negative")
	}
	if c.Engine.PoolPageSize <= 0 {
		return fmt.Errorf("pool page size must be positive")
	}
	if c.Engine.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if c.Engine.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	return nil
}
