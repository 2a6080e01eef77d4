package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gitlab.com/tng-miniapp/ledger_api/featureflags"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
	"gitlab.com/tng-miniapp/ledger_api/net/kafka"
	"gitlab.com/tng-miniapp/ledger_api/net/redis"
)

// Config structure
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	DatabaseCluster DatabaseClusterConfig `mapstructure:"database_cluster"`
	Redis           redis.Config          `mapstructure:"redis"`
	Kafka           kafka.Config          `mapstructure:"kafka"`
	Cache           CacheConfig           `mapstructure:"cache"`
	Crons           Crons                 `mapstructure:"crons"`
	Unleash         featureflags.Config   `mapstructure:"unleash"`
	Ledger          LedgerConfig          `mapstructure:"ledger"`
}

// ServerConfig structure
type ServerConfig struct {
	Monitoring monitor.Config `mapstructure:"monitoring"`
	API        APIConfig      `mapstructure:"api"`
}

// APIConfig structure
type APIConfig struct {
	Port      int
	KeepAlive bool `mapstructure:"keep_alive"`
	// shared secret of the service tokens issued to the callers of the internal API
	JWTTokenSecret  string `mapstructure:"jwt_token_secret"`
	ServiceAudience string `mapstructure:"service_audience"`
}

// Crons - mapping of ids to execution frequency
type Crons map[string]string

// CacheConfig structure
type CacheConfig struct {
	// memory / redis / multilevel / nop
	Driver          string        `mapstructure:"driver"`
	AssetTTL        time.Duration `mapstructure:"asset_ttl"`
	BalanceTTL      time.Duration `mapstructure:"balance_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LedgerConfig structure
type LedgerConfig struct {
	ExpiredHoldsBatch   int    `mapstructure:"expired_holds_batch"`
	HistoryMaxLimit     int    `mapstructure:"history_max_limit"`
	NotificationsTopic  string `mapstructure:"notifications_topic"`
	NotificationsBuffer int    `mapstructure:"notifications_buffer"`
}

// DatabaseClusterConfig structure
type DatabaseClusterConfig struct {
	// postgres / memory
	Driver string         `mapstructure:"driver"`
	Writer DatabaseConfig `mapstructure:"writer"`
	Reader DatabaseConfig `mapstructure:"reader"`
	Pool   PoolConfig     `mapstructure:"pool"`
}

// DatabaseConfig structure
type DatabaseConfig struct {
	Host            string
	Username        string
	Password        string
	Name            string
	SSLmode         string `mapstructure:"sslmode"`
	ApplicationName string `mapstructure:"application_name"`
	Port            int
}

// PoolConfig structure
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN connection string used by the gorm driver
func (db DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Name, db.SSLmode)
	if db.ApplicationName != "" {
		dsn += " application_name=" + db.ApplicationName
	}
	return dsn
}

// URI connection url used by the migrations
func (db DatabaseConfig) URI() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", db.Username, db.Password, db.Host, db.Port, db.Name, db.SSLmode)
}

// Validate checks the settings the ledger cannot start without
func (cfg Config) Validate() error {
	switch cfg.DatabaseCluster.Driver {
	case "postgres":
		if cfg.DatabaseCluster.Writer.Host == "" {
			return errors.New("database_cluster.writer.host is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", cfg.DatabaseCluster.Driver)
	}
	if cfg.Server.API.JWTTokenSecret == "" {
		return errors.New("server.api.jwt_token_secret is required")
	}
	if cfg.Ledger.NotificationsTopic == "" && cfg.Kafka.IsConfigured() {
		return errors.New("ledger.notifications_topic is required when kafka is configured")
	}
	return nil
}

// LoadConfig Load server configuration from the yaml file
func LoadConfig(viperConf *viper.Viper) Config {
	var config Config

	err := viperConf.Unmarshal(&config)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to decode config into struct")
	}
	if config.Crons == nil {
		config.Crons = Crons{}
	}
	return config
}

// OpenConfig godoc
func OpenConfig(file string) {
	if file != "" {
		// Use config file from the flag.
		viper.SetConfigFile(file)
	}

	viper.SetConfigType("yaml")
	viper.SetConfigName(".config")
	viper.AddConfigPath(".")                // First try to load the config from the current directory
	viper.AddConfigPath("$HOME")            // Then try to load it from the HOME directory
	viper.AddConfigPath("/etc/ledger_api/") // As a last resort try to load it from /etc/
	viper.SetEnvPrefix("CFG")
	viper.AutomaticEnv()
	setDefaultVariables()

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		log.Fatal().Err(err).Msg("Unable to read configuration file")
	}
}

func setDefaultVariables() {
	viper.SetDefault("server.api.port", 8080)
	viper.SetDefault("server.api.service_audience", "ledger")
	viper.SetDefault("server.monitoring.port", 9090)
	viper.SetDefault("database_cluster.driver", "postgres")
	viper.SetDefault("database_cluster.pool.max_open_conns", 50)
	viper.SetDefault("database_cluster.pool.max_idle_conns", 10)
	viper.SetDefault("database_cluster.pool.conn_max_lifetime", time.Hour)
	viper.SetDefault("cache.driver", "memory")
	viper.SetDefault("cache.asset_ttl", 5*time.Minute)
	viper.SetDefault("cache.balance_ttl", 10*time.Second)
	viper.SetDefault("cache.cleanup_interval", time.Minute)
	viper.SetDefault("ledger.expired_holds_batch", 500)
	viper.SetDefault("ledger.history_max_limit", 100)
	viper.SetDefault("ledger.notifications_topic", "transfer_notifications")
	viper.SetDefault("ledger.notifications_buffer", 10000)
	viper.SetDefault("crons.process_expired_holds", "@every 1m")
	viper.SetDefault("crons.refresh_assets_cache", "@every 5m")
}
