package model

/*
 * Copyright © 2018-2019 Around25 SRL <office@around25.com>
 *
 * Licensed under the Around25 Wallet License Agreement (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.around25.com/licenses/EXCHANGE_LICENSE
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * @author		Cosmin Harangus <cosmin@around25.com>
 * @copyright 2018-2019 Around25 SRL <office@around25.com>
 * @license 	EXCHANGE_LICENSE
 */

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies the kind of a ledger failure
type ErrorCode string

const (
	ErrCodeInvalidAmount                ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidAsset                 ErrorCode = "INVALID_ASSET"
	ErrCodeInvalidUser                  ErrorCode = "INVALID_USER"
	ErrCodeInvalidRequest               ErrorCode = "INVALID_REQUEST"
	ErrCodeInsufficientBalance          ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeInsufficientAvailableBalance ErrorCode = "INSUFFICIENT_AVAILABLE_BALANCE"
	ErrCodeDuplicateIdempotencyKey      ErrorCode = "DUPLICATE_IDEMPOTENCY_KEY"
	ErrCodeHoldNotFound                 ErrorCode = "HOLD_NOT_FOUND"
	ErrCodeHoldAlreadyReleased          ErrorCode = "HOLD_ALREADY_RELEASED"
	ErrCodeHoldExpired                  ErrorCode = "HOLD_EXPIRED"
	ErrCodeInvalidHoldAmount            ErrorCode = "INVALID_HOLD_AMOUNT"
	ErrCodeLedgerImbalance              ErrorCode = "LEDGER_IMBALANCE"
	ErrCodeAssetNotFound                ErrorCode = "ASSET_NOT_FOUND"
	ErrCodeInternal                     ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase                     ErrorCode = "DATABASE_ERROR"
)

// LedgerError is the structured failure returned by every ledger operation
type LedgerError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewLedgerError godoc
func NewLedgerError(code ErrorCode, message string, details map[string]interface{}) *LedgerError {
	return &LedgerError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// NewInternalError hides the cause from the caller, it must be logged where it happened
func NewInternalError() *LedgerError {
	return NewLedgerError(ErrCodeInternal, "internal error", nil)
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches ledger errors by code so errors.Is works against the Err* values below
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// AsLedgerError returns the ledger error wrapped in err, if any
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// HasCode reports whether err is a ledger error with the given code
func HasCode(err error, code ErrorCode) bool {
	le, ok := AsLedgerError(err)
	return ok && le.Code == code
}

// Reference values for errors.Is
var (
	ErrInvalidAmount                = &LedgerError{Code: ErrCodeInvalidAmount}
	ErrInvalidAsset                 = &LedgerError{Code: ErrCodeInvalidAsset}
	ErrInvalidUser                  = &LedgerError{Code: ErrCodeInvalidUser}
	ErrInsufficientBalance          = &LedgerError{Code: ErrCodeInsufficientBalance}
	ErrInsufficientAvailableBalance = &LedgerError{Code: ErrCodeInsufficientAvailableBalance}
	ErrHoldNotFound                 = &LedgerError{Code: ErrCodeHoldNotFound}
	ErrHoldAlreadyReleased          = &LedgerError{Code: ErrCodeHoldAlreadyReleased}
	ErrAssetNotFound                = &LedgerError{Code: ErrCodeAssetNotFound}
	ErrLedgerImbalance              = &LedgerError{Code: ErrCodeLedgerImbalance}
)
