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
)

// Asset represents a token that can be held in the off-chain ledger
//
// Amounts of an asset are always expressed in its minimal unit. Decimals is the number of
// digits between the minimal unit and one whole token.
//
// swagger:model Asset
type Asset struct {
	// A unique identifier
	ID uint64 `gorm:"PRIMARY_KEY" json:"id"`
	// Unique upper case symbol
	//
	// required: true
	// example: TNG
	Symbol string `gorm:"type:varchar(16);UNIQUE;NOT NULL;" json:"symbol"`
	// The name of the asset
	//
	// example: TNG Token
	Name string `json:"name"`
	// On-chain mint address, backfilled once the token is deployed
	MintAddress *string `gorm:"column:mint_address" json:"mintAddress,omitempty"`
	// Number of digits after decimal point
	//
	// example: 9
	Decimals uint8 `json:"decimals"`
	// Whether the asset is backed by an on-chain token
	OnChain bool `gorm:"column:on_chain" json:"onChain"`
	// Inactive assets are hidden from lookups
	IsActive bool `gorm:"column:is_active" json:"isActive"`
	// Reference price of one whole token in USD
	UsdPrice  *postgres.Decimal `sql:"type:decimal(36,18)" gorm:"column:usd_price" json:"-"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// TableName godoc
func (Asset) TableName() string {
	return "assets"
}

// NormalizeSymbol returns the canonical form of an asset symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetUsdPrice returns the reference price or nil when none is configured
func (asset *Asset) GetUsdPrice() *decimal.Big {
	if asset.UsdPrice == nil || asset.UsdPrice.V == nil {
		return nil
	}
	return asset.UsdPrice.V
}

type assetJSON struct {
	ID          uint64    `json:"id"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	MintAddress *string   `json:"mintAddress,omitempty"`
	Decimals    uint8     `json:"decimals"`
	OnChain     bool      `json:"onChain"`
	IsActive    bool      `json:"isActive"`
	UsdPrice    *string   `json:"usdPrice,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MarshalJSON JSON encoding of an asset
func (asset Asset) MarshalJSON() ([]byte, error) {
	data := assetJSON{
		ID:          asset.ID,
		Symbol:      asset.Symbol,
		Name:        asset.Name,
		MintAddress: asset.MintAddress,
		Decimals:    asset.Decimals,
		OnChain:     asset.OnChain,
		IsActive:    asset.IsActive,
		CreatedAt:   asset.CreatedAt,
		UpdatedAt:   asset.UpdatedAt,
	}
	if price := asset.GetUsdPrice(); price != nil {
		s := price.String()
		data.UsdPrice = &s
	}
	return json.Marshal(data)
}

// UnmarshalJSON decodes an asset from its JSON representation
func (asset *Asset) UnmarshalJSON(b []byte) error {
	data := assetJSON{}
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	*asset = Asset{
		ID:          data.ID,
		Symbol:      data.Symbol,
		Name:        data.Name,
		MintAddress: data.MintAddress,
		Decimals:    data.Decimals,
		OnChain:     data.OnChain,
		IsActive:    data.IsActive,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
	if data.UsdPrice != nil {
		price, ok := new(decimal.Big).SetString(*data.UsdPrice)
		if ok {
			asset.UsdPrice = &postgres.Decimal{V: price}
		}
	}
	return nil
}

// UpdateMintAddressRequest godoc
type UpdateMintAddressRequest struct {
	MintAddress string `json:"mintAddress" form:"mintAddress"`
}
