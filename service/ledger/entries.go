package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// CreateLedgerEntry posts a single entry and applies it to the balance of the user.
// It serves deposits, withdrawals, rewards and fees whose counter party lives outside the ledger.
func (l *Ledger) CreateLedgerEntry(ctx context.Context, req model.CreateEntryRequest) (*model.LedgerEntry, error) {
	defer monitor.ObserveDuration("create_entry", time.Now())
	logger := log.With().
		Str("service", "ledger").
		Str("method", "CreateLedgerEntry").
		Str("user_id", req.UserID).
		Str("symbol", req.AssetSymbol).
		Str("idempotency_key", req.IdempotencyKey).
		Logger()

	if !conv.IsPositiveUnits(req.Amount) {
		return nil, model.NewLedgerError(model.ErrCodeInvalidAmount, "amount must be a positive integer", nil)
	}
	if err := checkUser(req.UserID, "user id"); err != nil {
		return nil, err
	}
	asset, err := l.assets.ResolveForValidation(ctx, req.AssetSymbol)
	if err != nil {
		return nil, err
	}
	if !req.Direction.IsValid() {
		return nil, model.NewLedgerError(model.ErrCodeInvalidRequest, "unknown entry direction", map[string]interface{}{"direction": req.Direction})
	}
	if !req.TxType.IsValid() {
		return nil, model.NewLedgerError(model.ErrCodeInvalidRequest, "unknown transaction type", map[string]interface{}{"txType": req.TxType})
	}
	if err := checkIdempotencyKey(req.IdempotencyKey); err != nil {
		return nil, err
	}
	if model.IsTransferLegKey(req.IdempotencyKey) {
		return nil, model.NewLedgerError(model.ErrCodeInvalidRequest, "idempotency key suffix is reserved for transfers", map[string]interface{}{
			"idempotencyKey": req.IdempotencyKey,
		})
	}

	reader := l.store.Writer()
	if entry, err := l.existingEntry(ctx, reader, req, asset); entry != nil || err != nil {
		if err != nil {
			return nil, failure(logger, err, "Unable to load entry")
		}
		return entry, nil
	}

	if req.Direction == model.EntryDirectionDebit {
		available, err := availableOf(ctx, reader, req.UserID, asset.ID)
		if err != nil {
			return nil, failure(logger, err, "Unable to load balance")
		}
		if available.Cmp(req.Amount) < 0 {
			return nil, insufficientBalance(available, req.Amount)
		}
	}

	txRef := req.TxRef
	if txRef == "" {
		txRef = model.NewTxRef()
	}
	entry := model.NewLedgerEntry(req.UserID, asset, req.Direction, req.Amount, req.TxType, txRef, req.IdempotencyKey, req.Description, req.Metadata)
	err = l.store.Transaction(ctx, func(tx queries.Tx) error {
		if err := tx.CreateEntry(ctx, entry); err != nil {
			return err
		}
		_, err := l.balances.UpdateBalanceInTransaction(ctx, tx, req.UserID, asset.ID, entry.SignedAmount())
		return err
	})
	if errors.Is(err, queries.ErrDuplicateKey) {
		existing, rerr := l.existingEntry(ctx, reader, req, asset)
		if rerr != nil {
			return nil, failure(logger, rerr, "Unable to load entry")
		}
		if existing != nil {
			return existing, nil
		}
	}
	if model.HasCode(err, model.ErrCodeInsufficientAvailableBalance) {
		le, _ := model.AsLedgerError(err)
		return nil, model.NewLedgerError(model.ErrCodeInsufficientBalance, "insufficient balance", le.Details)
	}
	if err != nil {
		return nil, failure(logger, err, "Unable to post entry")
	}

	monitor.EntriesCount.WithLabelValues(asset.Symbol, string(entry.Direction)).Inc()
	logger.Info().
		Str("tx_ref", txRef).
		Str("direction", string(entry.Direction)).
		Str("tx_type", string(entry.TxType)).
		Str("amount", conv.FormatUnits(req.Amount)).
		Msg("Entry posted")
	return entry, nil
}

// existingEntry returns the entry already posted under the idempotency key of the request
func (l *Ledger) existingEntry(ctx context.Context, reader queries.Reader, req model.CreateEntryRequest, asset *model.Asset) (*model.LedgerEntry, error) {
	entry, err := reader.FindEntryByIdempotencyKey(ctx, req.IdempotencyKey)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.UserID != req.UserID || entry.AssetID != asset.ID || entry.Direction != req.Direction || entry.GetAmount().Cmp(req.Amount) != 0 {
		return nil, keyReused(req.IdempotencyKey)
	}
	return entry, nil
}

// GetUserTransactionHistory returns a page of the entries of the user, newest first
func (l *Ledger) GetUserTransactionHistory(ctx context.Context, userID, symbol string, page, limit int) (*model.HistoryPage, error) {
	logger := log.With().Str("service", "ledger").Str("method", "GetUserTransactionHistory").Str("user_id", userID).Str("symbol", symbol).Logger()
	if err := checkUser(userID, "user id"); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > l.maxLimit {
		limit = l.maxLimit
	}

	filter := queries.EntryFilter{UserID: userID, Page: page, Limit: limit}
	if symbol != "" {
		asset, err := l.assets.ResolveForValidation(ctx, symbol)
		if err != nil {
			return nil, err
		}
		filter.AssetID = asset.ID
	}

	entries, total, err := l.store.Reader().ListEntries(ctx, filter)
	if err != nil {
		return nil, failure(logger, err, "Unable to load transaction history")
	}
	meta := model.PagingMeta{Page: page, Count: total, Limit: limit, Order: "created_at DESC"}
	if symbol != "" {
		meta.Filter = map[string]interface{}{"asset": model.NormalizeSymbol(symbol)}
	}
	return &model.HistoryPage{
		Entries: entries,
		Meta:    meta,
		Total:   total,
		HasMore: total > int64(page*limit),
	}, nil
}
