// internal/handlers/asset.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type AssetHandler struct {
	registry *services.RegistryService
	authz    *services.AuthorizationService
}

func NewAssetHandler(registry *services.RegistryService, authz *services.AuthorizationService) *AssetHandler {
	return &AssetHandler{
		registry: registry,
		authz:    authz,
	}
}

// POST /assets
func (h *AssetHandler) Register(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}

	originator, err := h.authz.Require(identityID, services.CapAssetRegister)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req services.RegisterAssetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	asset, err := h.registry.Register(originator, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, asset)
}

// POST /assets/:id/link
func (h *AssetHandler) LinkComponents(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.authz.Require(identityID, services.CapAssetLink); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req services.LinkComponentsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	asset, err := h.registry.LinkComponents(assetID, &req, time.Now().Unix())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}

// POST /assets/:id/activate
func (h *AssetHandler) Activate(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.authz.Require(identityID, services.CapAssetActivate); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	asset, err := h.registry.Activate(assetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}

type recordPaymentRequest struct {
	Amount string `json:"amount" validate:"required,amount"`
}

// POST /assets/:id/payments
func (h *AssetHandler) RecordPayment(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.authz.Require(identityID, services.CapPaymentRecord); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req recordPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	ts, err := timestampOrNow(c, time.Now().Unix())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	asset, err := h.registry.RecordPayment(assetID, amount, ts)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}

// POST /assets/:id/default-check
func (h *AssetHandler) DefaultCheck(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.authz.Require(identityID, services.CapDefaultCheck); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	ts, err := timestampOrNow(c, time.Now().Unix())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	triggered, asset, err := h.registry.CheckAndTriggerDefault(assetID, ts)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"triggered": triggered,
		"asset":     asset,
	})
}

// POST /assets/:id/pause
func (h *AssetHandler) Pause(c *gin.Context) {
	h.transition(c, services.CapAssetPause, h.registry.Pause)
}

// POST /assets/:id/unpause
func (h *AssetHandler) Unpause(c *gin.Context) {
	h.transition(c, services.CapAssetPause, h.registry.Unpause)
}

// POST /assets/:id/review
func (h *AssetHandler) MarkUnderReview(c *gin.Context) {
	h.transition(c, services.CapAssetReview, h.registry.MarkUnderReview)
}

// POST /assets/:id/liquidate
func (h *AssetHandler) StartLiquidation(c *gin.Context) {
	h.transition(c, services.CapAssetLiquidate, h.registry.StartLiquidation)
}

// POST /assets/:id/liquidate/complete
func (h *AssetHandler) CompleteLiquidation(c *gin.Context) {
	h.transition(c, services.CapAssetLiquidate, h.registry.CompleteLiquidation)
}

// GET /assets/:id
func (h *AssetHandler) GetAsset(c *gin.Context) {
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	asset, err := h.registry.GetAsset(assetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}

// GET /assets
func (h *AssetHandler) ListAssets(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	assets, total, err := h.registry.ListAssets(params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(assets, total, params)
	utils.SuccessResponse(c, result)
}

// GET /assets/:id/schedule
func (h *AssetHandler) GetSchedule(c *gin.Context) {
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	info, err := h.registry.Schedule(assetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, info)
}

// GET /assets/:id/health?timestamp=
func (h *AssetHandler) PreviewHealth(c *gin.Context) {
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ts, err := timestampOrNow(c, time.Now().Unix())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	health, err := h.registry.PreviewHealth(assetID, ts)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, health)
}

func (h *AssetHandler) transition(c *gin.Context, capability services.Capability, op func(assetID uuid.UUID) (*models.Asset, error)) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.authz.Require(identityID, capability); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	asset, err := op(assetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}
