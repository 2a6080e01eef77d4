package actions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gitlab.com/tng-miniapp/ledger_api/logger"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// RequestError is the body of every failed response
type RequestError struct {
	Error   string                 `json:"error"`
	Code    model.ErrorCode        `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Ping godoc
// swagger:route GET /ping misc ping
// Ping
//
// Ping the server
//
//	Produces:
//	- application/json
//
//	Schemes: http, https
//
//	Responses:
//	  200: StringResp
func Ping(c *gin.Context) {
	c.JSON(OK, "pong")
}

func abortWithError(c *gin.Context, code int, message string) {
	l := getlog(c)
	l.Debug().Int("resp_code", code).Msg(message)
	c.AbortWithStatusJSON(code, RequestError{Error: message})
}

// abortWithLedgerError answers with the status matching the code of the ledger error.
// Any other error is reported as an internal error without details.
func abortWithLedgerError(c *gin.Context, err error) {
	le, ok := model.AsLedgerError(err)
	if !ok {
		_ = c.Error(err)
		abortWithError(c, ServerError, "internal error")
		return
	}
	status := statusOf(le.Code)
	if status >= ServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, RequestError{Error: le.Message, Code: le.Code, Details: le.Details})
}

func getlog(c *gin.Context) zerolog.Logger {
	return logger.GetLogger(c)
}

func getQueryAsInt(c *gin.Context, name string, def int) int {
	val := c.Query(name)
	if val == "" {
		return def
	}
	param, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return param
}

func getPagination(c *gin.Context) (int, int) {
	page := getQueryAsInt(c, "page", 1)
	limit := getQueryAsInt(c, "limit", 0)
	return page, limit
}
