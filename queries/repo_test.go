package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDB() (*gorm.DB, sqlmock.Sqlmock) {
	logger := log.With().Str("test", "queries").Str("method", "setupDB").Logger()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		logger.Fatal().Msgf("can't create sqlmock: %s", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "postgres-mock",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logger.Fatal().Msgf("can't open gorm connection: %s", err)
	}

	return gormDB, mock
}

func setupRepo() (*Repo, sqlmock.Sqlmock) {
	db, mock := setupDB()
	return &Repo{Conn: db, ConnReader: db}, mock
}

func TestRepo_Assets(t *testing.T) {
	r, mock := setupRepo()
	ctx := context.Background()

	Convey("it should load an asset by symbol", t, func() {
		rows := sqlmock.NewRows([]string{"id", "symbol", "name", "decimals", "on_chain", "is_active"}).
			AddRow(3, "TNG", "TNG Token", 9, true, true)
		mock.
			ExpectQuery(`SELECT * FROM "assets" WHERE symbol = $1 ORDER BY "assets"."id" LIMIT 1`).
			WithArgs("TNG").
			WillReturnRows(rows)

		asset, err := r.Reader().GetAssetBySymbol(ctx, "TNG")
		So(err, ShouldBeNil)
		So(asset.ID, ShouldEqual, 3)
		So(asset.Symbol, ShouldEqual, "TNG")
		So(asset.Decimals, ShouldEqual, 9)
		So(asset.IsActive, ShouldBeTrue)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("it should return ErrNotFound for an unknown symbol", t, func() {
		mock.
			ExpectQuery(`SELECT * FROM "assets" WHERE symbol = $1 ORDER BY "assets"."id" LIMIT 1`).
			WithArgs("DOGE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}))

		asset, err := r.Reader().GetAssetBySymbol(ctx, "DOGE")
		So(asset, ShouldBeNil)
		So(err, ShouldEqual, ErrNotFound)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("it should list the active assets ordered by symbol", t, func() {
		rows := sqlmock.NewRows([]string{"id", "symbol", "name", "decimals", "is_active"}).
			AddRow(1, "SOL", "Solana", 9, true).
			AddRow(3, "TNG", "TNG Token", 9, true).
			AddRow(2, "USDC", "USD Coin", 6, true)
		mock.
			ExpectQuery(`SELECT * FROM "assets" WHERE is_active = $1 ORDER BY symbol ASC`).
			WithArgs(true).
			WillReturnRows(rows)

		assets, err := r.Reader().ListActiveAssets(ctx)
		So(err, ShouldBeNil)
		So(assets, ShouldHaveLength, 3)
		So(assets[2].Symbol, ShouldEqual, "USDC")
		So(assets[2].Decimals, ShouldEqual, 6)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestRepo_Entries(t *testing.T) {
	r, mock := setupRepo()
	ctx := context.Background()

	Convey("it should load both legs of a transaction", t, func() {
		rows := sqlmock.NewRows([]string{"id", "user_id", "asset_id", "asset_symbol", "direction", "tx_ref", "idempotency_key"}).
			AddRow("e-1", "alice", 3, "TNG", "DEBIT", "tx-1", "k_debit").
			AddRow("e-2", "bob", 3, "TNG", "CREDIT", "tx-1", "k_credit")
		mock.
			ExpectQuery(`SELECT * FROM "ledger_entries" WHERE tx_ref = $1 ORDER BY created_at ASC, id ASC`).
			WithArgs("tx-1").
			WillReturnRows(rows)

		entries, err := r.Reader().ListEntriesByTxRef(ctx, "tx-1")
		So(err, ShouldBeNil)
		So(entries, ShouldHaveLength, 2)
		So(entries[0].UserID, ShouldEqual, "alice")
		So(string(entries[1].Direction), ShouldEqual, "CREDIT")
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestRepo_Transaction(t *testing.T) {
	r, mock := setupRepo()
	ctx := context.Background()

	Convey("it should run the commit hooks once the transaction committed", t, func() {
		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := r.Transaction(ctx, func(tx Tx) error {
			tx.AfterCommit(func() { calls++ })
			So(calls, ShouldEqual, 0)
			return nil
		})
		So(err, ShouldBeNil)
		So(calls, ShouldEqual, 1)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("it should roll back and skip the hooks when the callback fails", t, func() {
		mock.ExpectBegin()
		mock.ExpectRollback()

		failure := errors.New("failure")
		calls := 0
		err := r.Transaction(ctx, func(tx Tx) error {
			tx.AfterCommit(func() { calls++ })
			return failure
		})
		So(err, ShouldEqual, failure)
		So(calls, ShouldEqual, 0)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	Convey("it should detect unique violations of both postgres drivers", t, func() {
		So(IsUniqueViolation(&pgconn.PgError{Code: "23505"}), ShouldBeTrue)
		So(IsUniqueViolation(&pq.Error{Code: "23505"}), ShouldBeTrue)
		So(IsUniqueViolation(&pgconn.PgError{Code: "23503"}), ShouldBeFalse)
		So(IsUniqueViolation(errors.New("23505")), ShouldBeFalse)
	})

	Convey("it should map driver errors to the store errors", t, func() {
		So(mapError(nil), ShouldBeNil)
		So(mapError(gorm.ErrRecordNotFound), ShouldEqual, ErrNotFound)
		So(mapError(&pgconn.PgError{Code: "23505"}), ShouldEqual, ErrDuplicateKey)
		So(wrapError(&pgconn.PgError{Code: "23505"}, "insert %s", "entry"), ShouldEqual, ErrDuplicateKey)
		So(wrapError(errors.New("boom"), "insert %s", "entry").Error(), ShouldEqual, "insert entry: boom")
	})
}
