package fms

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

func TestBalanceStore_RecalculateBalance(t *testing.T) {
	ctx := context.Background()

	Convey("Given a user with entries and an active hold", t, func() {
		bs, store := setupStore()
		tng := getAsset(store, "TNG")
		So(post(bs, store, "alice", "TNG", model.EntryDirectionCredit, 1000), ShouldBeNil)
		So(post(bs, store, "alice", "TNG", model.EntryDirectionDebit, 200), ShouldBeNil)

		hold := model.NewHold("alice", tng, conv.UnitsFromInt64(150), model.HoldPurposeOther, nil, nil, nil, nil)
		err := store.Transaction(ctx, func(tx queries.Tx) error {
			if err := tx.CreateHold(ctx, hold); err != nil {
				return err
			}
			_, err := bs.LockBalanceInTransaction(ctx, tx, "alice", tng.ID, hold.GetAmount())
			return err
		})
		So(err, ShouldBeNil)

		Convey("a drifted balance row is repaired from the ledger", func() {
			err := store.Transaction(ctx, func(tx queries.Tx) error {
				row, err := tx.LockBalance(ctx, "alice", tng.ID)
				if err != nil {
					return err
				}
				row.Set(conv.UnitsFromInt64(5000), conv.UnitsFromInt64(0))
				return tx.SaveBalance(ctx, row)
			})
			So(err, ShouldBeNil)

			balance, err := bs.RecalculateBalance(ctx, "alice", "TNG")
			So(err, ShouldBeNil)
			assertBalance(balance, "800", "150", "650")
			So(balance.SyncedAt, ShouldNotBeNil)

			Convey("recalculating again yields the same amounts", func() {
				again, err := bs.RecalculateBalance(ctx, "alice", "TNG")
				So(err, ShouldBeNil)
				assertBalance(again, "800", "150", "650")
			})
		})

		Convey("every balance row of the user is recalculated", func() {
			So(post(bs, store, "alice", "SOL", model.EntryDirectionCredit, 3), ShouldBeNil)

			balances, err := bs.RecalculateUser(ctx, "alice")
			So(err, ShouldBeNil)
			So(balances, ShouldHaveLength, 2)
		})

		Convey("entries that do not add up are reported and nothing is written", func() {
			entry := model.NewLedgerEntry("alice", tng, model.EntryDirectionDebit, conv.UnitsFromInt64(5000), model.TxTypeAdjustment, model.NewTxRef(), "orphan", nil, nil)
			err := store.Transaction(ctx, func(tx queries.Tx) error {
				return tx.CreateEntry(ctx, entry)
			})
			So(err, ShouldBeNil)

			_, err = bs.RecalculateBalance(ctx, "alice", "TNG")
			So(model.HasCode(err, model.ErrCodeLedgerImbalance), ShouldBeTrue)

			row, err := store.Reader().GetBalance(ctx, "alice", tng.ID)
			So(err, ShouldBeNil)
			So(conv.FormatUnits(row.Cached()), ShouldEqual, "800")
			So(row.SyncedAt, ShouldBeNil)
		})
	})
}
