package queries

import (
	"context"
	"errors"
	"time"

	"github.com/ericlagergren/decimal"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// ErrNotFound is returned when the requested row does not exist
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey is returned when an insert collides with a unique index
var ErrDuplicateKey = errors.New("duplicate key")

// EntryFilter godoc
type EntryFilter struct {
	UserID string
	// zero means any asset
	AssetID uint64
	Page    int
	Limit   int
}

// Offset of the first row of the page. Pages start at 1.
func (f EntryFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// HoldFilter godoc
type HoldFilter struct {
	UserID        string
	AssetID       uint64
	Status        model.HoldStatus
	ExpiresBefore *time.Time
	Limit         int
}

// Reader groups the read operations shared by the store and its transactions
type Reader interface {
	GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error)
	GetAssetByID(ctx context.Context, id uint64) (*model.Asset, error)
	ListActiveAssets(ctx context.Context) ([]*model.Asset, error)

	GetBalance(ctx context.Context, userID string, assetID uint64) (*model.Balance, error)
	ListBalances(ctx context.Context, userID string) ([]*model.Balance, error)

	FindEntryByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error)
	ListEntriesByTxRef(ctx context.Context, txRef string) ([]*model.LedgerEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*model.LedgerEntry, int64, error)
	// SumPostedEntries returns credits minus debits of the posted entries of the pair
	SumPostedEntries(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error)

	GetHold(ctx context.Context, id string) (*model.Hold, error)
	ListHolds(ctx context.Context, filter HoldFilter) ([]*model.Hold, error)
	SumActiveHolds(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error)
}

// Tx is the unit of work handed to the callback of Store.Transaction.
// Every balance mutation goes through a Tx so that it commits together with the rows it depends on.
type Tx interface {
	Reader

	// LockBalance reads the balance row for update, creating a zero row first when missing
	LockBalance(ctx context.Context, userID string, assetID uint64) (*model.Balance, error)
	SaveBalance(ctx context.Context, balance *model.Balance) error

	// CreateEntry returns ErrDuplicateKey when the idempotency key was already used
	CreateEntry(ctx context.Context, entry *model.LedgerEntry) error

	CreateHold(ctx context.Context, hold *model.Hold) error
	LockHold(ctx context.Context, id string) (*model.Hold, error)
	SaveHold(ctx context.Context, hold *model.Hold) error

	UpdateAssetMintAddress(ctx context.Context, symbol, mintAddress string) (*model.Asset, error)

	// AfterCommit registers a callback executed once the transaction committed
	AfterCommit(fn func())
}

// Store is the transactional persistence used by the ledger services
type Store interface {
	// Reader may be served by a lagging replica
	Reader() Reader
	// Writer reads from the primary and sees every committed transaction
	Writer() Reader
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}
