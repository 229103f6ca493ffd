// internal/handlers/shares.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type SharesHandler struct {
	shares *services.SharesService
	authz  *services.AuthorizationService
}

func NewSharesHandler(shares *services.SharesService, authz *services.AuthorizationService) *SharesHandler {
	return &SharesHandler{
		shares: shares,
		authz:  authz,
	}
}

type mintRequest struct {
	HolderID string `json:"holder_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required,amount"`
}

// POST /ledgers/:id/mint
func (h *SharesHandler) Mint(c *gin.Context) {
	ledgerID, ok := h.authorize(c, services.CapSharesMint)
	if !ok {
		return
	}

	var req mintRequest
	if !bindAndValidate(c, &req) {
		return
	}
	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid holder_id", err.Error())
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	ledger, err := h.shares.Mint(ledgerID, holderID, amount)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, ledger)
}

type burnRequest struct {
	HolderID string `json:"holder_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required,amount"`
}

// POST /ledgers/:id/burn
func (h *SharesHandler) Burn(c *gin.Context) {
	ledgerID, ok := h.authorize(c, services.CapSharesBurn)
	if !ok {
		return
	}

	var req burnRequest
	if !bindAndValidate(c, &req) {
		return
	}
	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid holder_id", err.Error())
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	ledger, err := h.shares.Burn(ledgerID, holderID, amount)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, ledger)
}

type transferRequest struct {
	ToID   string `json:"to_id" validate:"required,uuid"`
	Amount string `json:"amount" validate:"required,amount"`
}

// POST /ledgers/:id/transfer
//
// The sender is always the authenticated caller; transfers on behalf of
// another holder are not supported.
func (h *SharesHandler) Transfer(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	ledgerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.authz.Require(identityID, services.CapSharesTransfer); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req transferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid to_id", err.Error())
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	if err := h.shares.Transfer(ledgerID, identityID, toID, amount); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	balance, err := h.shares.BalanceOf(ledgerID, identityID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"balance": balance})
}

// GET /ledgers/:id
func (h *SharesHandler) GetLedger(c *gin.Context) {
	ledgerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ledger, err := h.shares.GetLedger(ledgerID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, ledger)
}

// GET /ledgers/:id/holders/:holderId/share-bps
func (h *SharesHandler) OwnershipShareBps(c *gin.Context) {
	ledgerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	holderID, ok := pathUUID(c, "holderId")
	if !ok {
		return
	}

	bps, err := h.shares.OwnershipShareBps(ledgerID, holderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	balance, err := h.shares.BalanceOf(ledgerID, holderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"share_bps": bps,
		"balance":   balance,
	})
}

func (h *SharesHandler) authorize(c *gin.Context, capability services.Capability) (uuid.UUID, bool) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return uuid.Nil, false
	}
	ledgerID, ok := pathUUID(c, "id")
	if !ok {
		return uuid.Nil, false
	}
	if _, err := h.authz.Require(identityID, capability); err != nil {
		utils.AppErrorResponse(c, err)
		return uuid.Nil, false
	}
	return ledgerID, true
}
