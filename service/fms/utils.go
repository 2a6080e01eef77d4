package fms

import (
	"strings"

	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// checkAmount accepts strictly positive integer amounts
func checkAmount(amount *decimal.Big) error {
	if !conv.IsPositiveUnits(amount) {
		return model.NewLedgerError(model.ErrCodeInvalidAmount, "amount must be a positive integer", nil)
	}
	return nil
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return model.NewLedgerError(model.ErrCodeInvalidUser, "user id is required", nil)
	}
	return nil
}

// failure passes ledger errors through and hides everything else behind an internal error
func failure(logger zerolog.Logger, err error, msg string) error {
	if le, ok := model.AsLedgerError(err); ok {
		return le
	}
	logger.Error().Err(err).Msg(msg)
	return model.NewInternalError()
}

func balanceKey(userID, symbol string) string {
	return "balance:" + userID + ":" + symbol
}

func balancesKey(userID string) string {
	return "balances:" + userID
}

// UserTag groups the cached balance views of a user
func UserTag(userID string) string {
	return "balances:" + userID
}
