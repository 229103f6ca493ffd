// internal/handlers/vault.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type VaultHandler struct {
	vaults *services.VaultService
	authz  *services.AuthorizationService
}

func NewVaultHandler(vaults *services.VaultService, authz *services.AuthorizationService) *VaultHandler {
	return &VaultHandler{
		vaults: vaults,
		authz:  authz,
	}
}

type depositRequest struct {
	Amount string `json:"amount" validate:"required,amount"`
}

// POST /vaults/:id/deposits
func (h *VaultHandler) Deposit(c *gin.Context) {
	identityID, vaultID, ok := h.caller(c, services.CapVaultDeposit)
	if !ok {
		return
	}

	var req depositRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	vault, err := h.vaults.DepositRevenue(vaultID, identityID, amount)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, vault)
}

type commitRequest struct {
	Expected string `json:"expected" validate:"required,amount"`
}

// POST /vaults/:id/distributions
func (h *VaultHandler) CommitToDistribution(c *gin.Context) {
	_, vaultID, ok := h.caller(c, services.CapVaultCommit)
	if !ok {
		return
	}

	var req commitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	expected, ok := parseAmount(c, req.Expected)
	if !ok {
		return
	}

	vault, err := h.vaults.CommitToDistribution(vaultID, expected)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, vault)
}

// POST /vaults/:id/claims
func (h *VaultHandler) ClaimYield(c *gin.Context) {
	identityID, vaultID, ok := h.caller(c, services.CapYieldClaim)
	if !ok {
		return
	}

	transfer, err := h.vaults.ClaimYield(vaultID, identityID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, transfer)
}

type deployRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,amount"`
}

// POST /vaults/:id/deployments
func (h *VaultHandler) DeployCapital(c *gin.Context) {
	_, vaultID, ok := h.caller(c, services.CapVaultDeploy)
	if !ok {
		return
	}

	var req deployRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid recipient_id", err.Error())
		return
	}

	transfer, err := h.vaults.DeployCapital(vaultID, recipientID, amount)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, transfer)
}

type withdrawFeesRequest struct {
	Amount string `json:"amount" validate:"required,amount"`
}

// POST /vaults/:id/fees/withdraw
func (h *VaultHandler) WithdrawFees(c *gin.Context) {
	_, vaultID, ok := h.caller(c, services.CapVaultFees)
	if !ok {
		return
	}

	var req withdrawFeesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	transfer, err := h.vaults.WithdrawFees(vaultID, amount)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, transfer)
}

// GET /vaults/:id
func (h *VaultHandler) GetVault(c *gin.Context) {
	vaultID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	vault, err := h.vaults.GetVault(vaultID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, vault)
}

// GET /vaults/:id/available/investors
func (h *VaultHandler) AvailableForInvestors(c *gin.Context) {
	vaultID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	available, err := h.vaults.AvailableForInvestors(vaultID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"available": available})
}

// GET /vaults/:id/available/deployment
func (h *VaultHandler) AvailableForDeployment(c *gin.Context) {
	vaultID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	available, err := h.vaults.AvailableForDeployment(vaultID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"available": available})
}

// GET /vaults/:id/rewards
func (h *VaultHandler) PendingRewards(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	vaultID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	pending, err := h.vaults.PendingRewards(vaultID, identityID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"pending": pending})
}

// caller resolves the authenticated identity, the vault path id, and
// runs the capability check.
func (h *VaultHandler) caller(c *gin.Context, capability services.Capability) (uuid.UUID, uuid.UUID, bool) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	vaultID, ok := pathUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	if _, err := h.authz.Require(identityID, capability); err != nil {
		utils.AppErrorResponse(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return identityID, vaultID, true
}
