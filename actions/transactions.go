package actions

import (
	"github.com/gin-gonic/gin"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// GetUserTransactions godoc
// swagger:route GET /v1/users/{user_id}/transactions transactions get_transactions
// Get transactions
//
// Get the ledger entries of a user, newest first
//
//	Produces:
//	- application/json
//
//	Responses:
//	  200: HistoryPage
//	  400: RequestErrorResp
func (actions *Actions) GetUserTransactions(c *gin.Context) {
	page, limit := getPagination(c)
	history, err := actions.service.Ledger.GetUserTransactionHistory(c.Request.Context(), c.Param("user_id"), c.Query("asset"), page, limit)
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, history)
}

// ExecuteTransfer godoc
// swagger:route POST /v1/transfers transactions execute_transfer
// Transfer
//
// Move funds between two users. Requests are idempotent on their idempotency key.
//
//	Consumes:
//	- application/json
//
//	Responses:
//	  200: TransferResult
//	  201: TransferResult
//	  400: RequestErrorResp
//	  409: RequestErrorResp
//	  422: RequestErrorResp
func (actions *Actions) ExecuteTransfer(c *gin.Context) {
	req := model.TransferHTTPRequest{}
	if !bindJSON(c, &req, false) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}

	result, err := actions.service.Ledger.ExecuteTransfer(c.Request.Context(), model.TransferRequest{
		FromUserID:     req.FromUserID,
		ToUserID:       req.ToUserID,
		AssetSymbol:    req.AssetSymbol,
		Amount:         amount,
		Description:    req.Description,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	if result.Replayed {
		c.JSON(OK, result)
		return
	}
	c.JSON(Created, result)
}

// CreateLedgerEntry godoc
// swagger:route POST /v1/entries transactions create_entry
// Create entry
//
// Post a single entry for a movement whose counter party lives outside the ledger
//
//	Consumes:
//	- application/json
//
//	Responses:
//	  201: LedgerEntry
//	  400: RequestErrorResp
//	  422: RequestErrorResp
func (actions *Actions) CreateLedgerEntry(c *gin.Context) {
	req := model.CreateEntryHTTPRequest{}
	if !bindJSON(c, &req, false) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}

	entry, err := actions.service.Ledger.CreateLedgerEntry(c.Request.Context(), model.CreateEntryRequest{
		UserID:         req.UserID,
		AssetSymbol:    req.AssetSymbol,
		Direction:      req.Direction,
		Amount:         amount,
		TxType:         req.TxType,
		TxRef:          req.TxRef,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
		Metadata:       req.Metadata,
	})
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(Created, entry)
}

// VerifyTransaction godoc
// swagger:route GET /v1/transactions/{tx_ref}/verify transactions verify_transaction
// Verify transaction
//
// Check that the entries posted under a transaction reference balance out
//
//	Responses:
//	  200: StringResp
//	  400: RequestErrorResp
//	  500: RequestErrorResp
func (actions *Actions) VerifyTransaction(c *gin.Context) {
	txRef := c.Param("tx_ref")
	if err := actions.service.Ledger.VerifyTransaction(c.Request.Context(), txRef); err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, map[string]interface{}{"txRef": txRef, "balanced": true})
}
