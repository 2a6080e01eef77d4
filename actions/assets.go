package actions

import (
	"github.com/gin-gonic/gin"
	"gitlab.com/tng-miniapp/ledger_api/model"
)

// GetAssets godoc
// swagger:route GET /v1/assets assets get_assets
// Get assets
//
// List the active assets
//
//	Produces:
//	- application/json
//
//	Responses:
//	  200: Assets
//	  500: RequestErrorResp
func (actions *Actions) GetAssets(c *gin.Context) {
	assets, err := actions.service.Assets.GetAllActiveAssets(c.Request.Context())
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, assets)
}

// GetAsset godoc
// swagger:route GET /v1/assets/{symbol} assets get_asset
// Get asset
//
//	Responses:
//	  200: Asset
//	  404: RequestErrorResp
func (actions *Actions) GetAsset(c *gin.Context) {
	asset, err := actions.service.Assets.GetAssetBySymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	c.JSON(OK, asset)
}

// UpdateAssetMintAddress godoc
// swagger:route PUT /v1/assets/{symbol}/mint assets update_asset_mint
// Update mint address
//
// Backfill the on-chain mint address of an asset
//
//	Consumes:
//	- application/json
//
//	Responses:
//	  200: Asset
//	  400: RequestErrorResp
//	  404: RequestErrorResp
func (actions *Actions) UpdateAssetMintAddress(c *gin.Context) {
	req := model.UpdateMintAddressRequest{}
	if !bindJSON(c, &req, false) {
		return
	}
	asset, err := actions.service.Assets.UpdateAssetMintAddress(c.Request.Context(), c.Param("symbol"), req.MintAddress)
	if err != nil {
		abortWithLedgerError(c, err)
		return
	}
	log := getlog(c)
	log.Info().Str("section", "assets").Str("symbol", asset.Symbol).Str("mint_address", req.MintAddress).Msg("Mint address updated")
	c.JSON(OK, asset)
}
