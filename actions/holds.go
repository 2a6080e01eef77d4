package actions

import (
	"github.com/ericlagergren/decimal"
	"github.com/gin-gonic/gin"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// CreateHold godoc
// swagger:route POST /v1/holds holds create_hold
// Create hold
//
// Lock part of the available balance of a user
//
//	Consumes:
//	- application/json
//
//	Responses:
//	  201: Hold
//	  400: RequestErrorResp
//	  422: RequestErrorResp
func (actions *Actions) CreateHold(c *gin.Context) {
	req := model.CreateHoldHTTPRequest{}
	if !bindJSON(c, &req, false) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}

	hold, err := actions.service.Holds.CreateHold(c.Request.Context(), model.CreateHoldRequest{
		UserID:      req.UserID,
		AssetSymbol: req.AssetSymbol,
		Amount:      amount,
		Purpose:     req.Purpose,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		Metadata:    req.Metadata,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(Created, hold)
}

// GetHold godoc
// swagger:route GET /v1/holds/{hold_id} holds get_hold
// Get hold
//
//	Responses:
//	  200: Hold
//	  404: RequestErrorResp
func (actions *Actions) GetHold(c *gin.Context) {
	hold, err := actions.service.Holds.GetHold(c.Request.Context(), c.Param("hold_id"))
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, hold)
}

// ReleaseHold godoc
// swagger:route POST /v1/holds/{hold_id}/release holds release_hold
// Release hold
//
// Release the whole hold, or part of it when a release amount is given
//
//	Consumes:
//	- application/json
//
//	Responses:
//	  200: Hold
//	  400: RequestErrorResp
//	  404: RequestErrorResp
//	  409: RequestErrorResp
func (actions *Actions) ReleaseHold(c *gin.Context) {
	req := model.ReleaseHoldHTTPRequest{}
	if !bindJSON(c, &req, true) {
		return
	}
	var amount *decimal.Big
	if req.ReleaseAmount != nil {
		var err error
		if amount, err = parseAmount(*req.ReleaseAmount); err != nil {
			abortWithLedgerError(c, model.NewLedgerError(model.ErrCodeInvalidHoldAmount, "release amount must be a positive integer", nil))
			return
		}
	}

	hold, err := actions.service.Holds.ReleaseHold(c.Request.Context(), model.ReleaseHoldRequest{
		HoldID:        c.Param("hold_id"),
		ReleaseAmount: amount,
		Reason:        req.Reason,
	})
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, hold)
}

// CancelHold godoc
// swagger:route POST /v1/holds/{hold_id}/cancel holds cancel_hold
// Cancel hold
//
//	Responses:
//	  200: Hold
//	  404: RequestErrorResp
//	  409: RequestErrorResp
func (actions *Actions) CancelHold(c *gin.Context) {
	req := model.CancelHoldHTTPRequest{}
	if !bindJSON(c, &req, true) {
		return
	}
	hold, err := actions.service.Holds.CancelHold(c.Request.Context(), c.Param("hold_id"), req.Reason)
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, hold)
}

// GetUserHolds godoc
// swagger:route GET /v1/users/{user_id}/holds holds get_user_holds
// Get active holds
//
//	Responses:
//	  200: Holds
//	  400: RequestErrorResp
func (actions *Actions) GetUserHolds(c *gin.Context) {
	holds, err := actions.service.Holds.GetUserActiveHolds(c.Request.Context(), c.Param("user_id"), c.Query("asset"))
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, holds)
}
