package actions

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"gitlab.com/tng-miniapp/ledger_api/cache"
	"gitlab.com/tng-miniapp/ledger_api/config"
	"gitlab.com/tng-miniapp/ledger_api/model"
	"gitlab.com/tng-miniapp/ledger_api/queries/memory"
	"gitlab.com/tng-miniapp/ledger_api/service"
	"gitlab.com/tng-miniapp/ledger_api/service/notifications"
)

const testSecret = "secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupActions() *Actions {
	cfg := config.Config{}
	cfg.Server.API.JWTTokenSecret = testSecret
	cfg.Server.API.ServiceAudience = "ledger"
	store := memory.NewStore(memory.SeedAssets()...)
	return NewActions(cfg, service.New(cfg, store, cache.Nop{}, notifications.Nop{}))
}

func setupRouter(a *Actions) *gin.Engine {
	r := gin.New()
	v1 := r.Group("/v1", a.RestrictService(), a.CheckMaintenanceMode())
	v1.GET("/assets/:symbol", a.GetAsset)
	v1.GET("/users/:user_id/balances/:symbol", a.GetUserBalance)
	v1.GET("/users/:user_id/transactions", a.GetUserTransactions)
	v1.POST("/transfers", a.ExecuteTransfer)
	v1.POST("/entries", a.CreateLedgerEntry)
	v1.POST("/holds", a.CreateHold)
	v1.POST("/holds/:hold_id/release", a.ReleaseHold)
	return r
}

func token(t *testing.T, claims jwt.MapClaims, secret string) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func call(t *testing.T, r *gin.Engine, method, path string, body interface{}, bearer string) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code model.ErrorCode
		want int
	}{
		{model.ErrCodeInvalidAmount, BadRequest},
		{model.ErrCodeInvalidAsset, BadRequest},
		{model.ErrCodeInvalidUser, BadRequest},
		{model.ErrCodeInvalidRequest, BadRequest},
		{model.ErrCodeInvalidHoldAmount, BadRequest},
		{model.ErrCodeInsufficientBalance, ValidationFailed},
		{model.ErrCodeInsufficientAvailableBalance, ValidationFailed},
		{model.ErrCodeHoldNotFound, NotFound},
		{model.ErrCodeAssetNotFound, NotFound},
		{model.ErrCodeDuplicateIdempotencyKey, Conflict},
		{model.ErrCodeHoldAlreadyReleased, Conflict},
		{model.ErrCodeHoldExpired, Conflict},
		{model.ErrCodeLedgerImbalance, ServerError},
		{model.ErrCodeInternal, ServerError},
		{model.ErrCodeDatabase, ServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.code))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{name: "Success case. Integer amount", arg: "1500", want: "1500"},
		{name: "Success case. Exponent notation", arg: "1e3", want: "1000"},
		{name: "Fail case. Fractional amount", arg: "12.5", wantErr: true},
		{name: "Fail case. Letters", arg: "12a", wantErr: true},
		{name: "Fail case. Empty", arg: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmount(tt.arg)
			if tt.wantErr {
				assert.Equal(t, true, model.HasCode(err, model.ErrCodeInvalidAmount))
				return
			}
			assert.Equal(t, nil, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAbortWithLedgerError(t *testing.T) {
	r := gin.New()
	r.GET("/ledger", func(c *gin.Context) {
		abortWithLedgerError(c, model.NewLedgerError(model.ErrCodeHoldNotFound, "hold not found", map[string]interface{}{"holdId": "h1"}))
	})
	r.GET("/other", func(c *gin.Context) {
		abortWithLedgerError(c, errors.New("connection refused"))
	})

	status, resp := call(t, r, "GET", "/ledger", nil, "")
	assert.Equal(t, NotFound, status)
	assert.Equal(t, "HOLD_NOT_FOUND", resp["code"])
	assert.Equal(t, "hold not found", resp["error"])

	status, resp = call(t, r, "GET", "/other", nil, "")
	assert.Equal(t, ServerError, status)
	assert.Equal(t, "internal error", resp["error"])
	_, leaked := resp["details"]
	assert.Equal(t, false, leaked)
}

func TestRestrictService(t *testing.T) {
	r := setupRouter(setupActions())

	tests := []struct {
		name   string
		bearer string
		want   int
	}{
		{name: "Fail case. Missing token", bearer: "", want: Unauthorized},
		{name: "Fail case. Wrong secret", bearer: token(t, jwt.MapClaims{"aud": "ledger", "sub": "payments"}, "other"), want: Unauthorized},
		{name: "Fail case. Wrong audience", bearer: token(t, jwt.MapClaims{"aud": "wallet", "sub": "payments"}, testSecret), want: AccessDenied},
		{name: "Fail case. Missing subject", bearer: token(t, jwt.MapClaims{"aud": "ledger"}, testSecret), want: AccessDenied},
		{name: "Success case. Service token", bearer: token(t, jwt.MapClaims{"aud": "ledger", "sub": "payments"}, testSecret), want: OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := call(t, r, "GET", "/v1/assets/tng", nil, tt.bearer)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestLedgerRoutes(t *testing.T) {
	r := setupRouter(setupActions())
	bearer := token(t, jwt.MapClaims{"aud": "ledger", "sub": "payments"}, testSecret)

	status, resp := call(t, r, "POST", "/v1/entries", map[string]interface{}{
		"userId":         "alice",
		"assetSymbol":    "TNG",
		"direction":      "CREDIT",
		"amount":         "1000",
		"txType":         "DEPOSIT",
		"idempotencyKey": "deposit-1",
	}, bearer)
	assert.Equal(t, Created, status)
	assert.Equal(t, "1000", resp["amount"])

	transfer := map[string]interface{}{
		"fromUserId":     "alice",
		"toUserId":       "bob",
		"assetSymbol":    "TNG",
		"amount":         "500",
		"idempotencyKey": "tx-1",
	}
	status, resp = call(t, r, "POST", "/v1/transfers", transfer, bearer)
	assert.Equal(t, Created, status)
	transferID := resp["transferId"]

	status, resp = call(t, r, "POST", "/v1/transfers", transfer, bearer)
	assert.Equal(t, OK, status)
	assert.Equal(t, true, resp["replayed"])
	assert.Equal(t, transferID, resp["transferId"])

	status, resp = call(t, r, "GET", "/v1/users/bob/balances/tng", nil, bearer)
	assert.Equal(t, OK, status)
	assert.Equal(t, "500", resp["amountCached"])

	status, resp = call(t, r, "POST", "/v1/holds", map[string]interface{}{
		"userId":      "alice",
		"assetSymbol": "TNG",
		"amount":      "300",
		"purpose":     "ORDER_ESCROW",
	}, bearer)
	assert.Equal(t, Created, status)
	holdID := resp["id"].(string)

	status, resp = call(t, r, "POST", "/v1/holds", map[string]interface{}{
		"userId":      "alice",
		"assetSymbol": "TNG",
		"amount":      "900",
	}, bearer)
	assert.Equal(t, ValidationFailed, status)
	assert.Equal(t, "INSUFFICIENT_AVAILABLE_BALANCE", resp["code"])

	status, resp = call(t, r, "POST", "/v1/holds/"+holdID+"/release", map[string]interface{}{"releaseAmount": "100"}, bearer)
	assert.Equal(t, OK, status)
	assert.Equal(t, "200", resp["amount"])
	assert.Equal(t, "ACTIVE", resp["status"])

	status, _ = call(t, r, "POST", "/v1/holds/missing/release", nil, bearer)
	assert.Equal(t, NotFound, status)

	status, resp = call(t, r, "POST", "/v1/transfers", map[string]interface{}{
		"fromUserId":     "alice",
		"toUserId":       "bob",
		"assetSymbol":    "TNG",
		"amount":         "abc",
		"idempotencyKey": "tx-2",
	}, bearer)
	assert.Equal(t, BadRequest, status)
	assert.Equal(t, "INVALID_AMOUNT", resp["code"])

	status, resp = call(t, r, "GET", "/v1/users/alice/transactions?limit=1", nil, bearer)
	assert.Equal(t, OK, status)
	assert.Equal(t, float64(2), resp["total"])
	assert.Equal(t, true, resp["hasMore"])

	status, _ = call(t, r, "GET", "/v1/users/alice/transactions?asset=DOGE", nil, bearer)
	assert.Equal(t, BadRequest, status)
}
