package model

import (
	"encoding/json"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	postgresDialects "github.com/jinzhu/gorm/dialects/postgres"
	"gitlab.com/tng-miniapp/ledger_api/conv"
)

type PagingMeta struct {
	Page   int                    `json:"page"`
	Count  int64                  `json:"count"`
	Limit  int                    `json:"limit"`
	Order  string                 `json:"order"`
	Filter map[string]interface{} `json:"filter"`
}

// NewMetadata encodes free form metadata for a jsonb column
func NewMetadata(data map[string]interface{}) postgresDialects.Jsonb {
	if len(data) == 0 {
		return postgresDialects.Jsonb{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return postgresDialects.Jsonb{}
	}
	return postgresDialects.Jsonb{RawMessage: raw}
}

// MetadataMap decodes a jsonb column. Invalid or empty content yields an empty map.
func MetadataMap(metadata postgresDialects.Jsonb) map[string]interface{} {
	data := map[string]interface{}{}
	if len(metadata.RawMessage) == 0 {
		return data
	}
	_ = json.Unmarshal(metadata.RawMessage, &data)
	return data
}

func metadataOrNil(metadata postgresDialects.Jsonb) map[string]interface{} {
	if len(metadata.RawMessage) == 0 {
		return nil
	}
	return MetadataMap(metadata)
}

// NewUnitsColumn wraps an amount for a numeric(78,0) column
func NewUnitsColumn(amount *decimal.Big) *postgres.Decimal {
	return &postgres.Decimal{V: conv.CloneUnits(amount)}
}

// UnitsOf returns a copy of the column value, zero when unset
func UnitsOf(column *postgres.Decimal) *decimal.Big {
	if column == nil || column.V == nil {
		return conv.NewUnits()
	}
	return conv.CloneUnits(column.V)
}
