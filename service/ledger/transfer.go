package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
	"gitlab.com/tng-miniapp/ledger_api/queries"
)

// ExecuteTransfer moves funds between two users as one DEBIT and one CREDIT entry under a single txRef.
// Repeating a request with the same idempotency key returns the original posting.
func (l *Ledger) ExecuteTransfer(ctx context.Context, req model.TransferRequest) (*model.TransferResult, error) {
	defer monitor.ObserveDuration("execute_transfer", time.Now())
	logger := log.With().
		Str("service", "ledger").
		Str("method", "ExecuteTransfer").
		Str("from_user_id", req.FromUserID).
		Str("to_user_id", req.ToUserID).
		Str("symbol", req.AssetSymbol).
		Str("idempotency_key", req.IdempotencyKey).
		Logger()

	asset, err := l.validateTransfer(ctx, req)
	if err != nil {
		monitor.TransfersCount.WithLabelValues(model.NormalizeSymbol(req.AssetSymbol), "rejected").Inc()
		return nil, err
	}
	debitKey := req.IdempotencyKey + model.DebitKeySuffix
	creditKey := req.IdempotencyKey + model.CreditKeySuffix

	// idempotency lookups must see the latest commits
	reader := l.store.Writer()
	if result, err := l.replay(ctx, reader, req, asset, debitKey); result != nil || err != nil {
		if err != nil {
			return nil, failure(logger, err, "Unable to replay transfer")
		}
		return result, nil
	}

	available, err := availableOf(ctx, reader, req.FromUserID, asset.ID)
	if err != nil {
		return nil, failure(logger, err, "Unable to load sender balance")
	}
	if available.Cmp(req.Amount) < 0 {
		monitor.TransfersCount.WithLabelValues(asset.Symbol, "rejected").Inc()
		return nil, insufficientBalance(available, req.Amount)
	}

	txRef := model.NewTxRef()
	debit := model.NewLedgerEntry(req.FromUserID, asset, model.EntryDirectionDebit, req.Amount, model.TxTypeTransfer, txRef, debitKey, req.Description, req.Metadata)
	credit := model.NewLedgerEntry(req.ToUserID, asset, model.EntryDirectionCredit, req.Amount, model.TxTypeTransfer, txRef, creditKey, req.Description, req.Metadata)

	err = l.store.Transaction(ctx, func(tx queries.Tx) error {
		// both rows are locked in the same order by every transfer
		users := []string{req.FromUserID, req.ToUserID}
		sort.Strings(users)
		for _, userID := range users {
			if _, err := tx.LockBalance(ctx, userID, asset.ID); err != nil {
				return err
			}
		}
		if err := tx.CreateEntry(ctx, debit); err != nil {
			return err
		}
		if err := tx.CreateEntry(ctx, credit); err != nil {
			return err
		}
		if _, err := l.balances.UpdateBalanceInTransaction(ctx, tx, req.FromUserID, asset.ID, debit.SignedAmount()); err != nil {
			return err
		}
		_, err := l.balances.UpdateBalanceInTransaction(ctx, tx, req.ToUserID, asset.ID, credit.SignedAmount())
		return err
	})
	if errors.Is(err, queries.ErrDuplicateKey) {
		// a concurrent request with the same key committed first
		result, rerr := l.replay(ctx, reader, req, asset, debitKey)
		if rerr != nil {
			return nil, failure(logger, rerr, "Unable to replay transfer")
		}
		if result != nil {
			return result, nil
		}
	}
	if model.HasCode(err, model.ErrCodeInsufficientBalance) || model.HasCode(err, model.ErrCodeInsufficientAvailableBalance) {
		monitor.TransfersCount.WithLabelValues(asset.Symbol, "rejected").Inc()
		le, _ := model.AsLedgerError(err)
		return nil, model.NewLedgerError(model.ErrCodeInsufficientBalance, "insufficient balance", le.Details)
	}
	if err != nil {
		monitor.TransfersCount.WithLabelValues(asset.Symbol, "failed").Inc()
		return nil, failure(logger, err, "Unable to post transfer")
	}

	monitor.EntriesCount.WithLabelValues(asset.Symbol, string(model.EntryDirectionDebit)).Inc()
	monitor.EntriesCount.WithLabelValues(asset.Symbol, string(model.EntryDirectionCredit)).Inc()

	if err := l.verify(ctx, logger, txRef); err != nil {
		monitor.TransfersCount.WithLabelValues(asset.Symbol, "imbalanced").Inc()
		return nil, err
	}
	monitor.TransfersCount.WithLabelValues(asset.Symbol, "posted").Inc()
	logger.Info().Str("tx_ref", txRef).Str("amount", conv.FormatUnits(req.Amount)).Msg("Transfer posted")

	l.notify(asset, req, txRef, credit.CreatedAt)

	return &model.TransferResult{
		Success:     true,
		TransferID:  txRef,
		TxRef:       txRef,
		DebitEntry:  debit,
		CreditEntry: credit,
	}, nil
}

func (l *Ledger) validateTransfer(ctx context.Context, req model.TransferRequest) (*model.Asset, error) {
	if !conv.IsPositiveUnits(req.Amount) {
		return nil, model.NewLedgerError(model.ErrCodeInvalidAmount, "amount must be a positive integer", nil)
	}
	asset, err := l.assets.ResolveForValidation(ctx, req.AssetSymbol)
	if err != nil {
		return nil, err
	}
	if err := checkUser(req.FromUserID, "sender"); err != nil {
		return nil, err
	}
	if err := checkUser(req.ToUserID, "recipient"); err != nil {
		return nil, err
	}
	if req.FromUserID == req.ToUserID {
		return nil, model.NewLedgerError(model.ErrCodeInvalidUser, "cannot transfer to yourself", nil)
	}
	if err := checkIdempotencyKey(req.IdempotencyKey); err != nil {
		return nil, err
	}
	return asset, nil
}

// replay returns the posting already recorded under the debit key, or nil when there is none
func (l *Ledger) replay(ctx context.Context, reader queries.Reader, req model.TransferRequest, asset *model.Asset, debitKey string) (*model.TransferResult, error) {
	debit, err := reader.FindEntryByIdempotencyKey(ctx, debitKey)
	if errors.Is(err, queries.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if debit.UserID != req.FromUserID || debit.AssetID != asset.ID || debit.GetAmount().Cmp(req.Amount) != 0 {
		return nil, keyReused(req.IdempotencyKey)
	}

	result := &model.TransferResult{
		Success:    true,
		TransferID: debit.TxRef,
		TxRef:      debit.TxRef,
		Replayed:   true,
		DebitEntry: debit,
	}
	entries, err := reader.ListEntriesByTxRef(ctx, debit.TxRef)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Direction == model.EntryDirectionCredit {
			result.CreditEntry = entry
		}
	}
	monitor.TransfersCount.WithLabelValues(asset.Symbol, "replayed").Inc()
	return result, nil
}

// VerifyTransaction checks that the entries posted under txRef balance out
func (l *Ledger) VerifyTransaction(ctx context.Context, txRef string) error {
	logger := log.With().Str("service", "ledger").Str("method", "VerifyTransaction").Str("tx_ref", txRef).Logger()
	if txRef == "" {
		return model.NewLedgerError(model.ErrCodeInvalidRequest, "transaction reference is required", nil)
	}
	return l.verify(ctx, logger, txRef)
}

func (l *Ledger) verify(ctx context.Context, logger zerolog.Logger, txRef string) error {
	entries, err := l.store.Writer().ListEntriesByTxRef(ctx, txRef)
	if err != nil {
		return failure(logger, err, "Unable to load transaction entries")
	}
	if len(entries) == 0 {
		return model.NewLedgerError(model.ErrCodeInvalidRequest, "transaction not found", map[string]interface{}{"txRef": txRef})
	}

	sum := conv.NewUnits()
	debits, credits := 0, 0
	for _, entry := range entries {
		sum.Add(sum, entry.SignedAmount())
		switch entry.Direction {
		case model.EntryDirectionDebit:
			debits++
		case model.EntryDirectionCredit:
			credits++
		}
	}
	// single leg postings are not double-entry pairs and carry no balancing leg
	if len(entries) == 1 && entries[0].TxType != model.TxTypeTransfer {
		return nil
	}
	if sum.Sign() == 0 && debits == 1 && credits == 1 {
		return nil
	}

	monitor.LedgerImbalanceCount.Inc()
	logger.Error().
		Str("sum", conv.FormatUnits(sum)).
		Int("debits", debits).
		Int("credits", credits).
		Msg("Ledger imbalance detected")
	return model.NewLedgerError(model.ErrCodeLedgerImbalance, "transaction entries do not balance", map[string]interface{}{
		"txRef":   txRef,
		"sum":     conv.FormatUnits(sum),
		"debits":  debits,
		"credits": credits,
	})
}

func (l *Ledger) notify(asset *model.Asset, req model.TransferRequest, txRef string, at time.Time) {
	notification := &model.TransferNotification{
		TransferID:  txRef,
		SenderID:    req.FromUserID,
		RecipientID: req.ToUserID,
		Asset:       asset.Symbol,
		Amount:      conv.FormatUnits(req.Amount),
		Timestamp:   at,
	}
	if req.Description != nil {
		notification.Memo = *req.Description
	}
	if price := asset.GetUsdPrice(); price != nil {
		estimate := conv.EstimateValue(req.Amount, asset.Decimals, price).String()
		notification.UsdEstimate = &estimate
	}
	l.publisher.Notify(notification)
}

// availableOf reads the committed available amount, a missing row counts as zero
func availableOf(ctx context.Context, reader queries.Reader, userID string, assetID uint64) (*decimal.Big, error) {
	balance, err := reader.GetBalance(ctx, userID, assetID)
	if errors.Is(err, queries.ErrNotFound) {
		return conv.NewUnits(), nil
	}
	if err != nil {
		return nil, err
	}
	return balance.Available(), nil
}

func insufficientBalance(available, amount *decimal.Big) error {
	return model.NewLedgerError(model.ErrCodeInsufficientBalance, "insufficient balance", map[string]interface{}{
		"availableAmount": conv.FormatUnits(available),
		"amount":          conv.FormatUnits(amount),
	})
}
