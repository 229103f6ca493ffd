// internal/handlers/compliance.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type ComplianceHandler struct {
	compliance *services.ComplianceService
	authz      *services.AuthorizationService
}

func NewComplianceHandler(compliance *services.ComplianceService, authz *services.AuthorizationService) *ComplianceHandler {
	return &ComplianceHandler{
		compliance: compliance,
		authz:      authz,
	}
}

// POST /compliance/kyc/:identityId/approve
func (h *ComplianceHandler) ApproveKYC(c *gin.Context) {
	adminID, targetID, ok := h.target(c, "identityId")
	if !ok {
		return
	}

	identity, err := h.compliance.ApproveKYC(targetID, adminID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, identity)
}

// POST /compliance/kyc/:identityId/reject
func (h *ComplianceHandler) RejectKYC(c *gin.Context) {
	_, targetID, ok := h.target(c, "identityId")
	if !ok {
		return
	}

	identity, err := h.compliance.RejectKYC(targetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, identity)
}

// POST /compliance/assets/:id/verify
func (h *ComplianceHandler) VerifyAsset(c *gin.Context) {
	_, assetID, ok := h.target(c, "id")
	if !ok {
		return
	}

	asset, err := h.compliance.VerifyAsset(assetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}

type whitelistRequest struct {
	AssetID  string `json:"asset_id" validate:"required,uuid"`
	HolderID string `json:"holder_id" validate:"required,uuid"`
}

// POST /compliance/whitelist
func (h *ComplianceHandler) Whitelist(c *gin.Context) {
	adminID, ok := identityFromContext(c)
	if !ok {
		return
	}
	if _, err := h.authz.Require(adminID, services.CapComplianceManage); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req whitelistRequest
	if !bindAndValidate(c, &req) {
		return
	}
	assetID, err := uuid.Parse(req.AssetID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset_id", err.Error())
		return
	}
	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid holder_id", err.Error())
		return
	}

	entry, err := h.compliance.Whitelist(assetID, holderID, adminID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, entry)
}

// DELETE /compliance/whitelist
func (h *ComplianceHandler) RemoveFromWhitelist(c *gin.Context) {
	adminID, ok := identityFromContext(c)
	if !ok {
		return
	}
	if _, err := h.authz.Require(adminID, services.CapComplianceManage); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req whitelistRequest
	if !bindAndValidate(c, &req) {
		return
	}
	assetID, err := uuid.Parse(req.AssetID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset_id", err.Error())
		return
	}
	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid holder_id", err.Error())
		return
	}

	if err := h.compliance.RemoveFromWhitelist(assetID, holderID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"removed": true})
}

func (h *ComplianceHandler) target(c *gin.Context, param string) (uuid.UUID, uuid.UUID, bool) {
	adminID, ok := identityFromContext(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	targetID, ok := pathUUID(c, param)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	if _, err := h.authz.Require(adminID, services.CapComplianceManage); err != nil {
		utils.AppErrorResponse(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return adminID, targetID, true
}
