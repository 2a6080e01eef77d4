package queries

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Repo structure
type Repo struct {
	Conn       *gorm.DB
	ConnReader *gorm.DB
}

var repo *Repo

// GetRepo returns the repository opened by Connect
func GetRepo() *Repo {
	return repo
}

// Connect opens the writer and reader connections of the cluster
func Connect(cfg config.DatabaseClusterConfig) (*Repo, error) {
	writer, err := open(cfg.Writer, cfg.Pool)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database [WRITER]")
	}
	reader := writer
	if cfg.Reader.Host != "" {
		reader, err = open(cfg.Reader, cfg.Pool)
		if err != nil {
			return nil, errors.Wrap(err, "unable to connect to database [READER]")
		}
	}
	repo = &Repo{
		Conn:       writer,
		ConnReader: reader,
	}
	return repo, nil
}

func open(dbConf config.DatabaseConfig, pool config.PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbConf.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	log.Info().Str("section", "database").Str("host", dbConf.Host).Str("name", dbConf.Name).Msg("Database connection opened")
	return db, nil
}

// Close make sure database connections are closed on exit
func Close() {
	if repo == nil {
		return
	}
	for name, db := range map[string]*gorm.DB{"writer": repo.Conn, "reader": repo.ConnReader} {
		sqlDB, err := db.DB()
		if err != nil {
			continue
		}
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Str("section", "database").Str("conn", name).Msg("Unable to close database connection")
		}
	}
}

// Reader reads from the reader connection
func (repo *Repo) Reader() Reader {
	return &session{db: repo.ConnReader}
}

// Writer reads from the writer connection
func (repo *Repo) Writer() Reader {
	return &session{db: repo.Conn}
}

// Transaction runs fn inside a database transaction on the writer connection.
// The transaction is committed when fn returns nil and rolled back otherwise.
func (repo *Repo) Transaction(ctx context.Context, fn func(tx Tx) error) (err error) {
	db := repo.Conn.WithContext(ctx).Begin()
	if db.Error != nil {
		return errors.Wrap(db.Error, "unable to begin transaction")
	}
	tx := &gormTx{session: session{db: db}}

	defer func() {
		if r := recover(); r != nil {
			db.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		db.Rollback()
		return err
	}
	if err = db.Commit().Error; err != nil {
		return errors.Wrap(err, "unable to commit transaction")
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

type session struct {
	db *gorm.DB
}

type gormTx struct {
	session
	hooks []func()
}

func (tx *gormTx) AfterCommit(fn func()) {
	tx.hooks = append(tx.hooks, fn)
}

func wrapError(err error, format string, args ...interface{}) error {
	mapped := mapError(err)
	if mapped == ErrNotFound || mapped == ErrDuplicateKey {
		return mapped
	}
	return errors.Wrap(err, fmt.Sprintf(format, args...))
}
