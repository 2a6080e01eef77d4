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
	"encoding/json"
	"strings"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	postgresDialects "github.com/jinzhu/gorm/dialects/postgres"
	gouuid "github.com/nu7hatch/gouuid"
	"gitlab.com/tng-miniapp/ledger_api/conv"
)

// EntryDirection godoc
// swagger:model EntryDirection
// enum: DEBIT,CREDIT
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "DEBIT"
	EntryDirectionCredit EntryDirection = "CREDIT"
)

func (d EntryDirection) IsValid() bool {
	switch d {
	case EntryDirectionDebit, EntryDirectionCredit:
		return true
	default:
		return false
	}
}

// EntryStatus godoc
type EntryStatus string

const (
	EntryStatusPosted EntryStatus = "POSTED"
)

// TxType classifies the operation that produced an entry
// swagger:model TxType
type TxType string

const (
	TxTypeTransfer   TxType = "TRANSFER"
	TxTypeReward     TxType = "REWARD"
	TxTypeFee        TxType = "FEE"
	TxTypeDeposit    TxType = "DEPOSIT"
	TxTypeWithdrawal TxType = "WITHDRAWAL"
	TxTypeStaking    TxType = "STAKING"
	TxTypeFarming    TxType = "FARMING"
	TxTypeAdjustment TxType = "ADJUSTMENT"
)

func (t TxType) IsValid() bool {
	switch t {
	case TxTypeTransfer,
		TxTypeReward,
		TxTypeFee,
		TxTypeDeposit,
		TxTypeWithdrawal,
		TxTypeStaking,
		TxTypeFarming,
		TxTypeAdjustment:
		return true
	default:
		return false
	}
}

// Idempotency key suffixes of the two legs of a transfer
const (
	DebitKeySuffix  = "_debit"
	CreditKeySuffix = "_credit"
)

// IsTransferLegKey reports whether key uses the suffix reserved for transfer legs
func IsTransferLegKey(key string) bool {
	return strings.HasSuffix(key, DebitKeySuffix) || strings.HasSuffix(key, CreditKeySuffix)
}

// LedgerEntry is one leg of a double-entry posting. Entries are never updated or deleted.
type LedgerEntry struct {
	ID             string                 `gorm:"PRIMARY_KEY;type:varchar(36)"`
	UserID         string                 `gorm:"column:user_id"`
	AssetID        uint64                 `gorm:"column:asset_id"`
	AssetSymbol    string                 `gorm:"column:asset_symbol"`
	Direction      EntryDirection         `sql:"not null;type:entry_direction_t;" gorm:"column:direction"`
	Amount         *postgres.Decimal      `sql:"type:numeric(78,0)" gorm:"column:amount"`
	TxType         TxType                 `sql:"not null;type:tx_type_t;" gorm:"column:tx_type"`
	TxRef          string                 `gorm:"column:tx_ref"`
	Status         EntryStatus            `sql:"not null;type:entry_status_t;" gorm:"column:status"`
	IdempotencyKey string                 `gorm:"column:idempotency_key;UNIQUE"`
	Description    *string                `gorm:"column:description"`
	Metadata       postgresDialects.Jsonb `gorm:"column:metadata"`
	CreatedAt      time.Time              `gorm:"column:created_at"`
	PostedAt       *time.Time             `gorm:"column:posted_at"`
	SettledAt      *time.Time             `gorm:"column:settled_at"`
}

// TableName godoc
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewTxRef generates a transaction reference for a new posting
func NewTxRef() string {
	u, _ := gouuid.NewV4()
	return u.String()
}

// NewLedgerEntry creates a posted entry
func NewLedgerEntry(userID string, asset *Asset, direction EntryDirection, amount *decimal.Big, txType TxType, txRef, idempotencyKey string, description *string, metadata map[string]interface{}) *LedgerEntry {
	u, _ := gouuid.NewV4()
	now := time.Now()
	return &LedgerEntry{
		ID:             u.String(),
		UserID:         userID,
		AssetID:        asset.ID,
		AssetSymbol:    asset.Symbol,
		Direction:      direction,
		Amount:         NewUnitsColumn(amount),
		TxType:         txType,
		TxRef:          txRef,
		Status:         EntryStatusPosted,
		IdempotencyKey: idempotencyKey,
		Description:    description,
		Metadata:       NewMetadata(metadata),
		CreatedAt:      now,
		PostedAt:       &now,
	}
}

// GetAmount godoc
func (entry *LedgerEntry) GetAmount() *decimal.Big {
	return UnitsOf(entry.Amount)
}

// SignedAmount returns the effect of the entry on the user position
func (entry *LedgerEntry) SignedAmount() *decimal.Big {
	amount := entry.GetAmount()
	if entry.Direction == EntryDirectionDebit {
		return amount.Neg(amount)
	}
	return amount
}

// MarshalJSON JSON encoding of a ledger entry
func (entry LedgerEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"id":          entry.ID,
		"userId":      entry.UserID,
		"assetSymbol": entry.AssetSymbol,
		"direction":   entry.Direction,
		"amount":      conv.FormatUnits(entry.GetAmount()),
		"txType":      entry.TxType,
		"txRef":       entry.TxRef,
		"status":      entry.Status,
		"description": entry.Description,
		"metadata":    metadataOrNil(entry.Metadata),
		"createdAt":   entry.CreatedAt,
		"postedAt":    entry.PostedAt,
		"settledAt":   entry.SettledAt,
	})
}

// TransferRequest moves funds between two users
type TransferRequest struct {
	FromUserID     string
	ToUserID       string
	AssetSymbol    string
	Amount         *decimal.Big
	Description    *string
	Metadata       map[string]interface{}
	IdempotencyKey string
}

// TransferResult godoc
type TransferResult struct {
	Success     bool         `json:"success"`
	TransferID  string       `json:"transferId"`
	TxRef       string       `json:"txRef"`
	Replayed    bool         `json:"replayed"`
	DebitEntry  *LedgerEntry `json:"debitEntry,omitempty"`
	CreditEntry *LedgerEntry `json:"creditEntry,omitempty"`
}

// CreateEntryRequest posts a single leg
type CreateEntryRequest struct {
	UserID         string
	AssetSymbol    string
	Direction      EntryDirection
	Amount         *decimal.Big
	TxType         TxType
	TxRef          string
	IdempotencyKey string
	Description    *string
	Metadata       map[string]interface{}
}

// HistoryPage is a page of the transaction history of a user
type HistoryPage struct {
	Entries []*LedgerEntry `json:"entries"`
	Meta    PagingMeta     `json:"meta"`
	Total   int64          `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// TransferHTTPRequest godoc
type TransferHTTPRequest struct {
	FromUserID     string                 `json:"fromUserId"`
	ToUserID       string                 `json:"toUserId"`
	AssetSymbol    string                 `json:"assetSymbol"`
	Amount         string                 `json:"amount"`
	Description    *string                `json:"description"`
	Metadata       map[string]interface{} `json:"metadata"`
	IdempotencyKey string                 `json:"idempotencyKey"`
}

// CreateEntryHTTPRequest godoc
type CreateEntryHTTPRequest struct {
	UserID         string                 `json:"userId"`
	AssetSymbol    string                 `json:"assetSymbol"`
	Direction      EntryDirection         `json:"direction"`
	Amount         string                 `json:"amount"`
	TxType         TxType                 `json:"txType"`
	TxRef          string                 `json:"txRef"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Description    *string                `json:"description"`
	Metadata       map[string]interface{} `json:"metadata"`
}
