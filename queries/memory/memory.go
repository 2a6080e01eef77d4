// Package memory keeps the ledger tables in process memory.
// It backs the memory database driver used by local runs and by the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	postgresDialects "github.com/jinzhu/gorm/dialects/postgres"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

type balanceKey struct {
	userID  string
	assetID uint64
}

// tables are never mutated in place once committed, a transaction works on a shallow copy
type tables struct {
	assets        map[uint64]*model.Asset
	balances      map[balanceKey]*model.Balance
	entries       []*model.LedgerEntry
	entryKeys     map[string]int
	holds         map[string]*model.Hold
	nextAssetID   uint64
	nextBalanceID uint64
}

func (t *tables) fork() *tables {
	next := &tables{
		assets:        make(map[uint64]*model.Asset, len(t.assets)),
		balances:      make(map[balanceKey]*model.Balance, len(t.balances)),
		entries:       t.entries[:len(t.entries):len(t.entries)],
		entryKeys:     make(map[string]int, len(t.entryKeys)),
		holds:         make(map[string]*model.Hold, len(t.holds)),
		nextAssetID:   t.nextAssetID,
		nextBalanceID: t.nextBalanceID,
	}
	for k, v := range t.assets {
		next.assets[k] = v
	}
	for k, v := range t.balances {
		next.balances[k] = v
	}
	for k, v := range t.entryKeys {
		next.entryKeys[k] = v
	}
	for k, v := range t.holds {
		next.holds[k] = v
	}
	return next
}

// Store is a transactional in-memory implementation of queries.Store.
// Transactions are serialized.
type Store struct {
	lock   sync.RWMutex
	txLock sync.Mutex
	data   *tables
}

// NewStore creates an empty store with the given assets registered
func NewStore(assets ...*model.Asset) *Store {
	store := &Store{
		data: &tables{
			assets:    map[uint64]*model.Asset{},
			balances:  map[balanceKey]*model.Balance{},
			entryKeys: map[string]int{},
			holds:     map[string]*model.Hold{},
		},
	}
	for _, asset := range assets {
		store.AddAsset(asset)
	}
	return store
}

// SeedAssets are the assets registered by the initial migration
func SeedAssets() []*model.Asset {
	now := time.Now()
	return []*model.Asset{
		{Symbol: "SOL", Name: "Solana", Decimals: 9, OnChain: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Symbol: "USDC", Name: "USD Coin", Decimals: 6, OnChain: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Symbol: "TNG", Name: "TNG Token", Decimals: 9, OnChain: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
}

// AddAsset registers an asset and assigns its ID when missing
func (store *Store) AddAsset(asset *model.Asset) *model.Asset {
	store.txLock.Lock()
	defer store.txLock.Unlock()
	store.lock.Lock()
	defer store.lock.Unlock()

	a := cloneAsset(asset)
	if a.ID == 0 {
		store.data.nextAssetID++
		a.ID = store.data.nextAssetID
	} else if a.ID > store.data.nextAssetID {
		store.data.nextAssetID = a.ID
	}
	store.data.assets[a.ID] = a
	return cloneAsset(a)
}

// Reader godoc
func (store *Store) Reader() queries.Reader {
	return &reader{store: store}
}

// Writer is the same view as Reader, there is no replica
func (store *Store) Writer() queries.Reader {
	return &reader{store: store}
}

// Transaction runs fn on a private copy of the tables and publishes it when fn succeeds
func (store *Store) Transaction(ctx context.Context, fn func(tx queries.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store.txLock.Lock()
	store.lock.RLock()
	tx := &memTx{view: view{data: store.data.fork()}}
	store.lock.RUnlock()

	committed := false
	defer func() {
		if !committed {
			store.txLock.Unlock()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	store.lock.Lock()
	store.data = tx.data
	store.lock.Unlock()
	committed = true
	store.txLock.Unlock()

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

type reader struct {
	store *Store
}

func (r *reader) snapshot() view {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()
	return view{data: r.store.data}
}

func (r *reader) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	v := r.snapshot()
	return v.GetAssetBySymbol(ctx, symbol)
}

func (r *reader) GetAssetByID(ctx context.Context, id uint64) (*model.Asset, error) {
	v := r.snapshot()
	return v.GetAssetByID(ctx, id)
}

func (r *reader) ListActiveAssets(ctx context.Context) ([]*model.Asset, error) {
	v := r.snapshot()
	return v.ListActiveAssets(ctx)
}

func (r *reader) GetBalance(ctx context.Context, userID string, assetID uint64) (*model.Balance, error) {
	v := r.snapshot()
	return v.GetBalance(ctx, userID, assetID)
}

func (r *reader) ListBalances(ctx context.Context, userID string) ([]*model.Balance, error) {
	v := r.snapshot()
	return v.ListBalances(ctx, userID)
}

func (r *reader) FindEntryByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	v := r.snapshot()
	return v.FindEntryByIdempotencyKey(ctx, key)
}

func (r *reader) ListEntriesByTxRef(ctx context.Context, txRef string) ([]*model.LedgerEntry, error) {
	v := r.snapshot()
	return v.ListEntriesByTxRef(ctx, txRef)
}

func (r *reader) ListEntries(ctx context.Context, filter queries.EntryFilter) ([]*model.LedgerEntry, int64, error) {
	v := r.snapshot()
	return v.ListEntries(ctx, filter)
}

func (r *reader) SumPostedEntries(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	v := r.snapshot()
	return v.SumPostedEntries(ctx, userID, assetID)
}

func (r *reader) GetHold(ctx context.Context, id string) (*model.Hold, error) {
	v := r.snapshot()
	return v.GetHold(ctx, id)
}

func (r *reader) ListHolds(ctx context.Context, filter queries.HoldFilter) ([]*model.Hold, error) {
	v := r.snapshot()
	return v.ListHolds(ctx, filter)
}

func (r *reader) SumActiveHolds(ctx context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	v := r.snapshot()
	return v.SumActiveHolds(ctx, userID, assetID)
}

// view answers reads from one version of the tables
type view struct {
	data *tables
}

func (v view) GetAssetBySymbol(_ context.Context, symbol string) (*model.Asset, error) {
	for _, asset := range v.data.assets {
		if asset.Symbol == symbol {
			return cloneAsset(asset), nil
		}
	}
	return nil, queries.ErrNotFound
}

func (v view) GetAssetByID(_ context.Context, id uint64) (*model.Asset, error) {
	asset, ok := v.data.assets[id]
	if !ok {
		return nil, queries.ErrNotFound
	}
	return cloneAsset(asset), nil
}

func (v view) ListActiveAssets(_ context.Context) ([]*model.Asset, error) {
	assets := make([]*model.Asset, 0, len(v.data.assets))
	for _, asset := range v.data.assets {
		if asset.IsActive {
			assets = append(assets, cloneAsset(asset))
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	return assets, nil
}

func (v view) GetBalance(_ context.Context, userID string, assetID uint64) (*model.Balance, error) {
	balance, ok := v.data.balances[balanceKey{userID, assetID}]
	if !ok {
		return nil, queries.ErrNotFound
	}
	return cloneBalance(balance), nil
}

func (v view) ListBalances(_ context.Context, userID string) ([]*model.Balance, error) {
	balances := make([]*model.Balance, 0)
	for key, balance := range v.data.balances {
		if key.userID == userID {
			balances = append(balances, cloneBalance(balance))
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].AssetID < balances[j].AssetID })
	return balances, nil
}

func (v view) FindEntryByIdempotencyKey(_ context.Context, key string) (*model.LedgerEntry, error) {
	idx, ok := v.data.entryKeys[key]
	if !ok {
		return nil, queries.ErrNotFound
	}
	return cloneEntry(v.data.entries[idx]), nil
}

func (v view) ListEntriesByTxRef(_ context.Context, txRef string) ([]*model.LedgerEntry, error) {
	entries := make([]*model.LedgerEntry, 0, 2)
	for _, entry := range v.data.entries {
		if entry.TxRef == txRef {
			entries = append(entries, cloneEntry(entry))
		}
	}
	return entries, nil
}

func (v view) ListEntries(_ context.Context, filter queries.EntryFilter) ([]*model.LedgerEntry, int64, error) {
	matches := make([]*model.LedgerEntry, 0)
	for _, entry := range v.data.entries {
		if entry.UserID != filter.UserID {
			continue
		}
		if filter.AssetID != 0 && entry.AssetID != filter.AssetID {
			continue
		}
		matches = append(matches, entry)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	total := int64(len(matches))
	offset := filter.Offset()
	if offset >= len(matches) {
		return []*model.LedgerEntry{}, total, nil
	}
	end := len(matches)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	page := make([]*model.LedgerEntry, 0, end-offset)
	for _, entry := range matches[offset:end] {
		page = append(page, cloneEntry(entry))
	}
	return page, total, nil
}

func (v view) SumPostedEntries(_ context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	total := conv.NewUnits()
	for _, entry := range v.data.entries {
		if entry.UserID != userID || entry.AssetID != assetID || entry.Status != model.EntryStatusPosted {
			continue
		}
		total.Add(total, entry.SignedAmount())
	}
	return total, nil
}

func (v view) GetHold(_ context.Context, id string) (*model.Hold, error) {
	hold, ok := v.data.holds[id]
	if !ok {
		return nil, queries.ErrNotFound
	}
	return cloneHold(hold), nil
}

func (v view) ListHolds(_ context.Context, filter queries.HoldFilter) ([]*model.Hold, error) {
	holds := make([]*model.Hold, 0)
	for _, hold := range v.data.holds {
		if filter.UserID != "" && hold.UserID != filter.UserID {
			continue
		}
		if filter.AssetID != 0 && hold.AssetID != filter.AssetID {
			continue
		}
		if filter.Status != "" && hold.Status != filter.Status {
			continue
		}
		if filter.ExpiresBefore != nil && !hold.IsPastExpiry(*filter.ExpiresBefore) {
			continue
		}
		holds = append(holds, hold)
	}
	sort.Slice(holds, func(i, j int) bool {
		if !holds[i].CreatedAt.Equal(holds[j].CreatedAt) {
			return holds[i].CreatedAt.Before(holds[j].CreatedAt)
		}
		return holds[i].ID < holds[j].ID
	})
	if filter.Limit > 0 && len(holds) > filter.Limit {
		holds = holds[:filter.Limit]
	}
	for i, hold := range holds {
		holds[i] = cloneHold(hold)
	}
	return holds, nil
}

func (v view) SumActiveHolds(_ context.Context, userID string, assetID uint64) (*decimal.Big, error) {
	total := conv.NewUnits()
	for _, hold := range v.data.holds {
		if hold.UserID == userID && hold.AssetID == assetID && hold.IsActive() {
			total.Add(total, hold.GetAmount())
		}
	}
	return total, nil
}

type memTx struct {
	view
	hooks []func()
}

func (tx *memTx) LockBalance(_ context.Context, userID string, assetID uint64) (*model.Balance, error) {
	key := balanceKey{userID, assetID}
	balance, ok := tx.data.balances[key]
	if !ok {
		tx.data.nextBalanceID++
		balance = model.NewBalance(userID, assetID)
		balance.ID = tx.data.nextBalanceID
		tx.data.balances[key] = balance
	}
	return cloneBalance(balance), nil
}

func (tx *memTx) SaveBalance(_ context.Context, balance *model.Balance) error {
	key := balanceKey{balance.UserID, balance.AssetID}
	if _, ok := tx.data.balances[key]; !ok {
		return queries.ErrNotFound
	}
	tx.data.balances[key] = cloneBalance(balance)
	return nil
}

func (tx *memTx) CreateEntry(_ context.Context, entry *model.LedgerEntry) error {
	if _, ok := tx.data.entryKeys[entry.IdempotencyKey]; ok {
		return queries.ErrDuplicateKey
	}
	tx.data.entries = append(tx.data.entries, cloneEntry(entry))
	tx.data.entryKeys[entry.IdempotencyKey] = len(tx.data.entries) - 1
	return nil
}

func (tx *memTx) CreateHold(_ context.Context, hold *model.Hold) error {
	if _, ok := tx.data.holds[hold.ID]; ok {
		return queries.ErrDuplicateKey
	}
	tx.data.holds[hold.ID] = cloneHold(hold)
	return nil
}

func (tx *memTx) LockHold(ctx context.Context, id string) (*model.Hold, error) {
	return tx.GetHold(ctx, id)
}

func (tx *memTx) SaveHold(_ context.Context, hold *model.Hold) error {
	if _, ok := tx.data.holds[hold.ID]; !ok {
		return queries.ErrNotFound
	}
	tx.data.holds[hold.ID] = cloneHold(hold)
	return nil
}

func (tx *memTx) UpdateAssetMintAddress(_ context.Context, symbol, mintAddress string) (*model.Asset, error) {
	for id, asset := range tx.data.assets {
		if asset.Symbol != symbol {
			continue
		}
		updated := cloneAsset(asset)
		updated.MintAddress = &mintAddress
		updated.UpdatedAt = time.Now()
		tx.data.assets[id] = updated
		return cloneAsset(updated), nil
	}
	return nil, queries.ErrNotFound
}

func (tx *memTx) AfterCommit(fn func()) {
	tx.hooks = append(tx.hooks, fn)
}

func cloneColumn(column *postgres.Decimal) *postgres.Decimal {
	if column == nil {
		return nil
	}
	return model.NewUnitsColumn(model.UnitsOf(column))
}

func cloneJsonb(data postgresDialects.Jsonb) postgresDialects.Jsonb {
	if data.RawMessage == nil {
		return postgresDialects.Jsonb{}
	}
	raw := make([]byte, len(data.RawMessage))
	copy(raw, data.RawMessage)
	return postgresDialects.Jsonb{RawMessage: raw}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneAsset(asset *model.Asset) *model.Asset {
	c := *asset
	c.MintAddress = cloneString(asset.MintAddress)
	if asset.UsdPrice != nil && asset.UsdPrice.V != nil {
		c.UsdPrice = &postgres.Decimal{V: new(decimal.Big).Copy(asset.UsdPrice.V)}
	}
	return &c
}

func cloneBalance(balance *model.Balance) *model.Balance {
	c := *balance
	c.AmountCached = cloneColumn(balance.AmountCached)
	c.LockedAmount = cloneColumn(balance.LockedAmount)
	c.AvailableAmount = cloneColumn(balance.AvailableAmount)
	c.SyncedAt = cloneTime(balance.SyncedAt)
	return &c
}

func cloneEntry(entry *model.LedgerEntry) *model.LedgerEntry {
	c := *entry
	c.Amount = cloneColumn(entry.Amount)
	c.Description = cloneString(entry.Description)
	c.Metadata = cloneJsonb(entry.Metadata)
	c.PostedAt = cloneTime(entry.PostedAt)
	c.SettledAt = cloneTime(entry.SettledAt)
	return &c
}

func cloneHold(hold *model.Hold) *model.Hold {
	c := *hold
	c.Amount = cloneColumn(hold.Amount)
	c.ReferenceID = cloneString(hold.ReferenceID)
	c.Description = cloneString(hold.Description)
	c.Metadata = cloneJsonb(hold.Metadata)
	c.ExpiresAt = cloneTime(hold.ExpiresAt)
	c.ReleasedAt = cloneTime(hold.ReleasedAt)
	return &c
}
