package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
	"gitlab.com/tng-miniapp/ledger_api/queries/memory"
)

// replicaStore serves Reader from a replica that has not received any entry yet
type replicaStore struct {
	*memory.Store
}

func (s replicaStore) Reader() queries.Reader {
	return laggingReader{Reader: s.Store.Reader()}
}

type laggingReader struct {
	queries.Reader
}

func (laggingReader) FindEntryByIdempotencyKey(context.Context, string) (*model.LedgerEntry, error) {
	return nil, queries.ErrNotFound
}

func (laggingReader) ListEntriesByTxRef(context.Context, string) ([]*model.LedgerEntry, error) {
	return nil, nil
}

// racingStore makes the next idempotency lookups miss, as if a concurrent request committed right after them
type racingStore struct {
	*memory.Store
	misses *int32
}

func (s racingStore) Writer() queries.Reader {
	return racingReader{Reader: s.Store.Writer(), misses: s.misses}
}

type racingReader struct {
	queries.Reader
	misses *int32
}

func (r racingReader) FindEntryByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	if atomic.AddInt32(r.misses, -1) >= 0 {
		return nil, queries.ErrNotFound
	}
	return r.Reader.FindEntryByIdempotencyKey(ctx, key)
}

func (f *fixture) withStore(store queries.Store) *Ledger {
	return New(store, f.ledger.assets, f.balances, f.published, 100)
}

func reward(userID string, amount int64, key string) model.CreateEntryRequest {
	return model.CreateEntryRequest{
		UserID:         userID,
		AssetSymbol:    "TNG",
		Direction:      model.EntryDirectionCredit,
		Amount:         conv.UnitsFromInt64(amount),
		TxType:         model.TxTypeReward,
		IdempotencyKey: key,
	}
}

func TestLedger_IdempotencyReadsThePrimary(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger whose read replica lags behind", t, func() {
		f := setup()
		f.deposit("alice", "TNG", 100)
		l := f.withStore(replicaStore{Store: f.store})

		Convey("a transfer is verified and replayed against the committed entries", func() {
			first, err := l.ExecuteTransfer(ctx, transfer("alice", "bob", 10, "lag-1"))
			So(err, ShouldBeNil)
			So(first.Replayed, ShouldBeFalse)

			again, err := l.ExecuteTransfer(ctx, transfer("alice", "bob", 10, "lag-1"))
			So(err, ShouldBeNil)
			So(again.Replayed, ShouldBeTrue)
			So(again.TransferID, ShouldEqual, first.TransferID)
			So(again.CreditEntry, ShouldNotBeNil)
			So(conv.FormatUnits(f.balance("alice", "TNG").AmountCached), ShouldEqual, "90")
		})

		Convey("a single entry is replayed against the committed entries", func() {
			first, err := l.CreateLedgerEntry(ctx, reward("carol", 5, "lag-reward"))
			So(err, ShouldBeNil)

			again, err := l.CreateLedgerEntry(ctx, reward("carol", 5, "lag-reward"))
			So(err, ShouldBeNil)
			So(again.ID, ShouldEqual, first.ID)
			So(conv.FormatUnits(f.balance("carol", "TNG").AmountCached), ShouldEqual, "5")
		})
	})
}

func TestLedger_DuplicateKeyReplay(t *testing.T) {
	ctx := context.Background()

	Convey("Given a request already posted and a lookup that misses it", t, func() {
		f := setup()
		f.deposit("alice", "TNG", 100)
		misses := int32(0)
		l := f.withStore(racingStore{Store: f.store, misses: &misses})

		Convey("the colliding transfer returns the original posting", func() {
			first, err := l.ExecuteTransfer(ctx, transfer("alice", "bob", 10, "race-1"))
			So(err, ShouldBeNil)

			atomic.StoreInt32(&misses, 1)
			again, err := l.ExecuteTransfer(ctx, transfer("alice", "bob", 10, "race-1"))
			So(err, ShouldBeNil)
			So(again.Replayed, ShouldBeTrue)
			So(again.TransferID, ShouldEqual, first.TransferID)
			So(conv.FormatUnits(f.balance("alice", "TNG").AmountCached), ShouldEqual, "90")
			So(conv.FormatUnits(f.balance("bob", "TNG").AmountCached), ShouldEqual, "10")
		})

		Convey("a colliding transfer with other parameters is rejected", func() {
			_, err := l.ExecuteTransfer(ctx, transfer("alice", "bob", 10, "race-2"))
			So(err, ShouldBeNil)

			atomic.StoreInt32(&misses, 1)
			_, err = l.ExecuteTransfer(ctx, transfer("alice", "bob", 20, "race-2"))
			So(model.HasCode(err, model.ErrCodeDuplicateIdempotencyKey), ShouldBeTrue)
			So(conv.FormatUnits(f.balance("alice", "TNG").AmountCached), ShouldEqual, "90")
		})

		Convey("the colliding entry returns the original entry", func() {
			first, err := l.CreateLedgerEntry(ctx, reward("carol", 5, "race-reward"))
			So(err, ShouldBeNil)

			atomic.StoreInt32(&misses, 1)
			again, err := l.CreateLedgerEntry(ctx, reward("carol", 5, "race-reward"))
			So(err, ShouldBeNil)
			So(again.ID, ShouldEqual, first.ID)
			So(conv.FormatUnits(f.balance("carol", "TNG").AmountCached), ShouldEqual, "5")
		})
	})
}

func TestLedger_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	const callers = 10

	Convey("Given alice holds 100 TNG", t, func() {
		f := setup()
		f.deposit("alice", "TNG", 100)

		Convey("concurrent transfers with one key post once", func() {
			results := make([]*model.TransferResult, callers)
			errs := make([]error, callers)
			wait := sync.WaitGroup{}
			for i := 0; i < callers; i++ {
				wait.Add(1)
				go func(i int) {
					defer wait.Done()
					results[i], errs[i] = f.ledger.ExecuteTransfer(ctx, transfer("alice", "bob", 10, "same-transfer"))
				}(i)
			}
			wait.Wait()

			for i := 0; i < callers; i++ {
				So(errs[i], ShouldBeNil)
				So(results[i].TransferID, ShouldEqual, results[0].TransferID)
			}
			entries, err := f.store.Reader().ListEntriesByTxRef(ctx, results[0].TxRef)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(conv.FormatUnits(f.balance("alice", "TNG").AmountCached), ShouldEqual, "90")
			So(conv.FormatUnits(f.balance("bob", "TNG").AmountCached), ShouldEqual, "10")
		})

		Convey("concurrent entries with one key post once", func() {
			entries := make([]*model.LedgerEntry, callers)
			errs := make([]error, callers)
			wait := sync.WaitGroup{}
			for i := 0; i < callers; i++ {
				wait.Add(1)
				go func(i int) {
					defer wait.Done()
					entries[i], errs[i] = f.ledger.CreateLedgerEntry(ctx, reward("carol", 7, "same-reward"))
				}(i)
			}
			wait.Wait()

			for i := 0; i < callers; i++ {
				So(errs[i], ShouldBeNil)
				So(entries[i].ID, ShouldEqual, entries[0].ID)
			}
			So(conv.FormatUnits(f.balance("carol", "TNG").AmountCached), ShouldEqual, "7")
		})
	})
}
