package actions

import (
	"github.com/ericlagergren/decimal"
	"github.com/gin-gonic/gin"
	"gitlab.com/tng-miniapp/ledger_api/conv"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// parseAmount reads an amount of minimal units sent as a decimal string.
// Malformed input is reported with the same error the ledger returns for a bad amount.
func parseAmount(amount string) (*decimal.Big, error) {
	units, err := conv.ParseUnits(amount)
	if err != nil {
		return nil, model.NewLedgerError(model.ErrCodeInvalidAmount, "amount must be a positive integer", map[string]interface{}{
			"amount": amount,
		})
	}
	return units, nil
}

// bindJSON decodes the request body, an empty body is accepted when allowEmpty is set
func bindJSON(c *gin.Context, target interface{}, allowEmpty bool) bool {
	if allowEmpty && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil {
		_ = c.Error(err)
		abortWithLedgerError(c, model.NewLedgerError(model.ErrCodeInvalidRequest, "invalid request body", nil))
		return false
	}
	return true
}
