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
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	postgresDialects "github.com/jinzhu/gorm/dialects/postgres"
	gouuid "github.com/nu7hatch/gouuid"
	"gitlab.com/tng-miniapp/ledger_api/conv"
)

// HoldPurpose godoc
// swagger:model HoldPurpose
type HoldPurpose string

const (
	HoldPurposeOrderEscrow         HoldPurpose = "ORDER_ESCROW"
	HoldPurposeWithdrawalPending   HoldPurpose = "WITHDRAWAL_PENDING"
	HoldPurposeStakingLock         HoldPurpose = "STAKING_LOCK"
	HoldPurposeBridgePending       HoldPurpose = "BRIDGE_PENDING"
	HoldPurposeInsuranceCollateral HoldPurpose = "INSURANCE_COLLATERAL"
	HoldPurposeOther               HoldPurpose = "OTHER"
)

func (p HoldPurpose) IsValid() bool {
	switch p {
	case HoldPurposeOrderEscrow,
		HoldPurposeWithdrawalPending,
		HoldPurposeStakingLock,
		HoldPurposeBridgePending,
		HoldPurposeInsuranceCollateral,
		HoldPurposeOther:
		return true
	default:
		return false
	}
}

// HoldStatus godoc
// swagger:model HoldStatus
// enum: ACTIVE,RELEASED,CANCELLED,EXPIRED
type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "ACTIVE"
	HoldStatusReleased  HoldStatus = "RELEASED"
	HoldStatusCancelled HoldStatus = "CANCELLED"
	HoldStatusExpired   HoldStatus = "EXPIRED"
)

// IsTerminal godoc
func (s HoldStatus) IsTerminal() bool {
	return s != HoldStatusActive
}

// Metadata keys written by the hold lifecycle
const (
	HoldMetaCancelReason   = "cancelReason"
	HoldMetaReleaseReasons = "releaseReasons"
	HoldMetaExpiredAt      = "expiredAt"
)

// Hold is a soft lock on a part of the available funds of a user
type Hold struct {
	ID          string                 `gorm:"PRIMARY_KEY;type:varchar(36)"`
	UserID      string                 `gorm:"column:user_id"`
	AssetID     uint64                 `gorm:"column:asset_id"`
	AssetSymbol string                 `gorm:"column:asset_symbol"`
	Amount      *postgres.Decimal      `sql:"type:numeric(78,0)" gorm:"column:amount"`
	Purpose     HoldPurpose            `sql:"not null;type:hold_purpose_t;" gorm:"column:purpose"`
	ReferenceID *string                `gorm:"column:reference_id"`
	Status      HoldStatus             `sql:"not null;type:hold_status_t;" gorm:"column:status"`
	Description *string                `gorm:"column:description"`
	Metadata    postgresDialects.Jsonb `gorm:"column:metadata"`
	ExpiresAt   *time.Time             `gorm:"column:expires_at"`
	CreatedAt   time.Time              `gorm:"column:created_at"`
	UpdatedAt   time.Time              `gorm:"column:updated_at"`
	ReleasedAt  *time.Time             `gorm:"column:released_at"`
}

// TableName godoc
func (Hold) TableName() string {
	return "holds"
}

// NewHold creates an active hold
func NewHold(userID string, asset *Asset, amount *decimal.Big, purpose HoldPurpose, referenceID, description *string, metadata map[string]interface{}, expiresAt *time.Time) *Hold {
	u, _ := gouuid.NewV4()
	now := time.Now()
	return &Hold{
		ID:          u.String(),
		UserID:      userID,
		AssetID:     asset.ID,
		AssetSymbol: asset.Symbol,
		Amount:      NewUnitsColumn(amount),
		Purpose:     purpose,
		ReferenceID: referenceID,
		Status:      HoldStatusActive,
		Description: description,
		Metadata:    NewMetadata(metadata),
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// GetAmount godoc
func (hold *Hold) GetAmount() *decimal.Big {
	return UnitsOf(hold.Amount)
}

// IsActive godoc
func (hold *Hold) IsActive() bool {
	return hold.Status == HoldStatusActive
}

// IsPastExpiry reports whether the hold has an expiry at or before the given time
func (hold *Hold) IsPastExpiry(now time.Time) bool {
	return hold.ExpiresAt != nil && !hold.ExpiresAt.After(now)
}

// SetMeta stores a key in the hold metadata
func (hold *Hold) SetMeta(key string, value interface{}) {
	data := MetadataMap(hold.Metadata)
	data[key] = value
	hold.Metadata = NewMetadata(data)
}

// AppendMeta appends a value to a list in the hold metadata
func (hold *Hold) AppendMeta(key string, value interface{}) {
	data := MetadataMap(hold.Metadata)
	list, _ := data[key].([]interface{})
	data[key] = append(list, value)
	hold.Metadata = NewMetadata(data)
}

// Close moves the hold into a terminal status
func (hold *Hold) Close(status HoldStatus, at time.Time) {
	hold.Status = status
	hold.UpdatedAt = at
	hold.ReleasedAt = &at
}

// MarshalJSON JSON encoding of a hold
func (hold Hold) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"id":          hold.ID,
		"userId":      hold.UserID,
		"assetSymbol": hold.AssetSymbol,
		"amount":      conv.FormatUnits(hold.GetAmount()),
		"purpose":     hold.Purpose,
		"referenceId": hold.ReferenceID,
		"status":      hold.Status,
		"description": hold.Description,
		"metadata":    metadataOrNil(hold.Metadata),
		"createdAt":   hold.CreatedAt,
		"updatedAt":   hold.UpdatedAt,
		"releasedAt":  hold.ReleasedAt,
		"expiresAt":   hold.ExpiresAt,
	})
}

// CreateHoldRequest godoc
type CreateHoldRequest struct {
	UserID      string
	AssetSymbol string
	Amount      *decimal.Big
	Purpose     HoldPurpose
	ReferenceID *string
	Description *string
	Metadata    map[string]interface{}
	ExpiresAt   *time.Time
}

// ReleaseHoldRequest releases the full hold when ReleaseAmount is nil
type ReleaseHoldRequest struct {
	HoldID        string
	ReleaseAmount *decimal.Big
	Reason        string
}

// CreateHoldHTTPRequest godoc
type CreateHoldHTTPRequest struct {
	UserID      string                 `json:"userId"`
	AssetSymbol string                 `json:"assetSymbol"`
	Amount      string                 `json:"amount"`
	Purpose     HoldPurpose            `json:"purpose"`
	ReferenceID *string                `json:"referenceId"`
	Description *string                `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
	ExpiresAt   *time.Time             `json:"expiresAt"`
}

// ReleaseHoldHTTPRequest godoc
type ReleaseHoldHTTPRequest struct {
	ReleaseAmount *string `json:"releaseAmount"`
	Reason        string  `json:"reason"`
}

// CancelHoldHTTPRequest godoc
type CancelHoldHTTPRequest struct {
	Reason string `json:"reason"`
}
