package actions

import (
	"github.com/gin-gonic/gin"
)

// GetUserBalances godoc
// swagger:route GET /v1/users/{user_id}/balances balances get_user_balances
// Get balances
//
// Get the balances of a user for every asset they ever held
//
//	Responses:
//	  200: UserBalances
//	  400: RequestErrorResp
func (actions *Actions) GetUserBalances(c *gin.Context) {
	balances, err := actions.service.Balances.GetUserBalances(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, balances)
}

// GetUserBalance godoc
// swagger:route GET /v1/users/{user_id}/balances/{symbol} balances get_user_balance
// Get balance
//
//	Responses:
//	  200: UserBalance
//	  400: RequestErrorResp
func (actions *Actions) GetUserBalance(c *gin.Context) {
	balance, err := actions.service.Balances.GetUserBalance(c.Request.Context(), c.Param("user_id"), c.Param("symbol"))
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, balance)
}

// RecalculateUserBalance godoc
// swagger:route POST /v1/users/{user_id}/balances/{symbol}/recalculate balances recalculate_user_balance
// Recalculate balance
//
// Rebuild the cached balance from the posted entries and the active holds
//
//	Responses:
//	  200: UserBalance
//	  400: RequestErrorResp
//	  500: RequestErrorResp
func (actions *Actions) RecalculateUserBalance(c *gin.Context) {
	balance, err := actions.service.Balances.RecalculateBalance(c.Request.Context(), c.Param("user_id"), c.Param("symbol"))
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, balance)
}
