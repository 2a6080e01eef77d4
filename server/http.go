package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gitlab.com/tng-miniapp/ledger_api/actions"
	"gitlab.com/tng-miniapp/ledger_api/featureflags"
	"gitlab.com/tng-miniapp/ledger_api/logger"
	"gitlab.com/tng-miniapp/ledger_api/monitor"
)

// ListenToRequests serves the internal API until the server is shut down
func (srv *server) ListenToRequests() error {
	log.Info().Str("worker", "http_listen_to_requests").Str("action", "start").Msg("HTTP Listen to requests - started")
	defer log.Info().Str("worker", "http_listen_to_requests").Str("action", "stop").Msg("HTTP Listen to requests - stopped")

	if err := srv.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// NewRouter registers every route of the internal API
func NewRouter(a *actions.Actions) *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "X-Requested-With", "Content-Length", "Content-Type", "Accept", "Authorization", "X-Request-Id"}
	corsConfig.AllowMethods = []string{"GET", "PUT", "POST", "OPTIONS"}

	r.Use(cors.New(corsConfig))
	r.Use(gin.Recovery()) // Recovery middleware recovers from any panics and writes a 500 if there was one.
	r.Use(logger.SetLogger(logger.Config{SkipPath: []string{"/ping"}}))
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/ping", actions.Ping)

	v1 := r.Group("/v1", a.RestrictService(), a.CheckMaintenanceMode())

	assets := v1.Group("/assets")
	{
		assets.GET("", a.GetAssets)
		assets.GET("/:symbol", a.GetAsset)
		assets.PUT("/:symbol/mint", a.UpdateAssetMintAddress)
	}

	users := v1.Group("/users/:user_id")
	{
		users.GET("/balances", a.GetUserBalances)
		users.GET("/balances/:symbol", a.GetUserBalance)
		users.POST("/balances/:symbol/recalculate", a.RecalculateUserBalance)
		users.GET("/transactions", a.GetUserTransactions)
		users.GET("/holds", a.GetUserHolds)
	}

	v1.POST("/transfers", a.CheckFeature(featureflags.DisableTransfers), a.ExecuteTransfer)
	v1.POST("/entries", a.CreateLedgerEntry)
	v1.GET("/transactions/:tx_ref/verify", a.VerifyTransaction)

	holds := v1.Group("/holds")
	{
		holds.POST("", a.CheckFeature(featureflags.DisableHolds), a.CreateHold)
		holds.GET("/:hold_id", a.GetHold)
		holds.POST("/:hold_id/release", a.ReleaseHold)
		holds.POST("/:hold_id/cancel", a.CancelHold)
	}

	return r
}
