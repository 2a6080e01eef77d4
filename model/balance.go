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
	"errors"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"gitlab.com/tng-miniapp/ledger_api/conv"
)

// Balance invariant violations
var (
	ErrNegativeBalance    = errors.New("amount cached is negative")
	ErrNegativeLocked     = errors.New("locked amount is negative")
	ErrLockedAboveBalance = errors.New("locked amount exceeds amount cached")
)

// Balance is the cached projection of a user position for one asset
//
// AmountCached is the net of all posted ledger entries, LockedAmount the sum of active holds.
// AvailableAmount is never written directly, see Derive.
type Balance struct {
	ID              uint64            `gorm:"PRIMARY_KEY" json:"id"`
	UserID          string            `gorm:"column:user_id" json:"userId"`
	AssetID         uint64            `gorm:"column:asset_id" json:"assetId"`
	AmountCached    *postgres.Decimal `sql:"type:numeric(78,0)" gorm:"column:amount_cached"`
	LockedAmount    *postgres.Decimal `sql:"type:numeric(78,0)" gorm:"column:locked_amount"`
	AvailableAmount *postgres.Decimal `sql:"type:numeric(78,0)" gorm:"column:available_amount"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
	SyncedAt        *time.Time        `gorm:"column:synced_at"`
}

// TableName godoc
func (Balance) TableName() string {
	return "balances"
}

// NewBalance creates a zero balance for the given user and asset
func NewBalance(userID string, assetID uint64) *Balance {
	return &Balance{
		UserID:          userID,
		AssetID:         assetID,
		AmountCached:    NewUnitsColumn(conv.NewUnits()),
		LockedAmount:    NewUnitsColumn(conv.NewUnits()),
		AvailableAmount: NewUnitsColumn(conv.NewUnits()),
		UpdatedAt:       time.Now(),
	}
}

func (b *Balance) Cached() *decimal.Big {
	return UnitsOf(b.AmountCached)
}

func (b *Balance) Locked() *decimal.Big {
	return UnitsOf(b.LockedAmount)
}

func (b *Balance) Available() *decimal.Big {
	return UnitsOf(b.AvailableAmount)
}

// Set replaces the cached and locked amounts and derives the available amount
func (b *Balance) Set(cached, locked *decimal.Big) {
	b.AmountCached = NewUnitsColumn(cached)
	b.LockedAmount = NewUnitsColumn(locked)
	b.Derive()
}

// Derive recomputes the available amount from the cached and locked amounts
func (b *Balance) Derive() {
	b.AvailableAmount = NewUnitsColumn(conv.NewUnits().Sub(b.Cached(), b.Locked()))
}

// Validate checks the balance invariants
func (b *Balance) Validate() error {
	cached := b.Cached()
	locked := b.Locked()
	if cached.Sign() < 0 {
		return ErrNegativeBalance
	}
	if locked.Sign() < 0 {
		return ErrNegativeLocked
	}
	if locked.Cmp(cached) > 0 {
		return ErrLockedAboveBalance
	}
	return nil
}

// ToUserBalance builds the public view of the balance
func (b *Balance) ToUserBalance(assetSymbol string) *UserBalance {
	return &UserBalance{
		UserID:          b.UserID,
		AssetSymbol:     assetSymbol,
		AmountCached:    b.Cached(),
		LockedAmount:    b.Locked(),
		AvailableAmount: b.Available(),
		LastUpdated:     b.UpdatedAt,
		SyncedAt:        b.SyncedAt,
	}
}

// UserBalance godoc
// swagger:model UserBalance
type UserBalance struct {
	UserID          string
	AssetSymbol     string
	AmountCached    *decimal.Big
	LockedAmount    *decimal.Big
	AvailableAmount *decimal.Big
	LastUpdated     time.Time
	SyncedAt        *time.Time
}

type userBalanceJSON struct {
	UserID          string     `json:"userId"`
	AssetSymbol     string     `json:"assetSymbol"`
	AmountCached    string     `json:"amountCached"`
	LockedAmount    string     `json:"lockedAmount"`
	AvailableAmount string     `json:"availableAmount"`
	LastUpdated     time.Time  `json:"lastUpdated"`
	SyncedAt        *time.Time `json:"syncedAt,omitempty"`
}

// MarshalJSON JSON encoding of a user balance
func (b UserBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(userBalanceJSON{
		UserID:          b.UserID,
		AssetSymbol:     b.AssetSymbol,
		AmountCached:    conv.FormatUnits(b.AmountCached),
		LockedAmount:    conv.FormatUnits(b.LockedAmount),
		AvailableAmount: conv.FormatUnits(b.AvailableAmount),
		LastUpdated:     b.LastUpdated,
		SyncedAt:        b.SyncedAt,
	})
}

// UnmarshalJSON godoc
func (b *UserBalance) UnmarshalJSON(data []byte) error {
	raw := userBalanceJSON{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cached, err := conv.ParseUnits(raw.AmountCached)
	if err != nil {
		return err
	}
	locked, err := conv.ParseUnits(raw.LockedAmount)
	if err != nil {
		return err
	}
	available, err := conv.ParseUnits(raw.AvailableAmount)
	if err != nil {
		return err
	}
	*b = UserBalance{
		UserID:          raw.UserID,
		AssetSymbol:     raw.AssetSymbol,
		AmountCached:    cached,
		LockedAmount:    locked,
		AvailableAmount: available,
		LastUpdated:     raw.LastUpdated,
		SyncedAt:        raw.SyncedAt,
	}
	return nil
}
