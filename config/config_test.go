package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("database_cluster.driver", "memory")
	v.SetDefault("server.api.jwt_token_secret", "secret")
	v.SetDefault("crons.process_expired_holds", "@every 1m")

	cfg := LoadConfig(v)
	assert.Equal(t, "memory", cfg.DatabaseCluster.Driver)
	assert.Equal(t, "@every 1m", cfg.Crons["process_expired_holds"])
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := Config{}
		cfg.DatabaseCluster.Driver = "postgres"
		cfg.DatabaseCluster.Writer.Host = "localhost"
		cfg.Server.API.JWTTokenSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "complete postgres config", mutate: func(cfg *Config) {}},
		{name: "memory driver needs no host", mutate: func(cfg *Config) {
			cfg.DatabaseCluster.Driver = "memory"
			cfg.DatabaseCluster.Writer.Host = ""
		}},
		{name: "missing writer host", mutate: func(cfg *Config) {
			cfg.DatabaseCluster.Writer.Host = ""
		}, wantErr: "database_cluster.writer.host is required"},
		{name: "unknown driver", mutate: func(cfg *Config) {
			cfg.DatabaseCluster.Driver = "mysql"
		}, wantErr: `unknown database driver "mysql"`},
		{name: "missing token secret", mutate: func(cfg *Config) {
			cfg.Server.API.JWTTokenSecret = ""
		}, wantErr: "server.api.jwt_token_secret is required"},
		{name: "kafka without topic", mutate: func(cfg *Config) {
			cfg.Kafka.Brokers = []string{"localhost:9092"}
		}, wantErr: "ledger.notifications_topic is required when kafka is configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestDatabaseConfig_URI(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, Username: "ledger", Password: "pw", Name: "ledger", SSLmode: "disable", ApplicationName: "ledger_api"}
	assert.Equal(t, "postgres://ledger:pw@db:5432/ledger?sslmode=disable", db.URI())
	assert.Equal(t, "host=db port=5432 user=ledger password=pw dbname=ledger sslmode=disable application_name=ledger_api", db.DSN())
}
