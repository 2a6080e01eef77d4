package commands

import (
	"github.com/rs/zerolog/log"

	cfg "gitlab.com/tng-miniapp/ledger_api/config"

	"github.com/golang-migrate/migrate/v4"

	// import support for the postgres driver and the file source
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationsPath where the sql migrations are loaded from
var MigrationsPath = "file://./db/migrations"

// Migrate the current database schema to the latest version
func Migrate(config cfg.Config) {
	run(config, "up", func(m *migrate.Migrate) error { return m.Up() })
}

// Rollback reverts the given number of migrations
func Rollback(config cfg.Config, steps int) {
	if steps <= 0 {
		log.Fatal().Str("section", "migrate").Int("steps", steps).Msg("The number of steps to roll back must be positive")
		return
	}
	run(config, "down", func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

func run(config cfg.Config, direction string, apply func(m *migrate.Migrate) error) {
	logger := log.With().Str("section", "migrate").Str("direction", direction).Logger()
	m, err := migrate.New(MigrationsPath, config.DatabaseCluster.Writer.URI())
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to connect to database [WRITER]")
		return
	}
	defer m.Close()

	if err = apply(m); err != nil && err != migrate.ErrNoChange {
		if errMapped, ok := err.(migrate.ErrDirty); ok {
			logger.Fatal().Err(err).Int("version", errMapped.Version).Msg("Database is dirty, fix the failed migration manually")
		} else {
			logger.Fatal().Err(err).Msg("Unable to execute migration")
		}
		return
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		logger.Warn().Err(err).Msg("Unable to read the schema version")
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Migrations executed successfully")
}
