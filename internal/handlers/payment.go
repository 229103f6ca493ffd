// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type PaymentHandler struct {
	payments *services.PaymentService
	authz    *services.AuthorizationService
}

func NewPaymentHandler(payments *services.PaymentService, authz *services.AuthorizationService) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		authz:    authz,
	}
}

type rentIntentRequest struct {
	Amount string `json:"amount" validate:"required,amount"`
}

// POST /assets/:id/rent/intent
func (h *PaymentHandler) CreateRentIntent(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req rentIntentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	intent, err := h.payments.CreateRentIntent(identityID, &services.CreateRentIntentRequest{
		AssetID: assetID,
		Amount:  req.Amount,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, intent)
}

// POST /assets/:id/rent/confirm
func (h *PaymentHandler) ConfirmRentPayment(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}
	if _, err := h.authz.Require(identityID, services.CapPaymentRecord); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var req services.ConfirmRentPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	payment, err := h.payments.ConfirmRentPayment(&req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payment)
}

// GET /assets/:id/rent
func (h *PaymentHandler) ListRentPayments(c *gin.Context) {
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	payments, err := h.payments.ListRentPayments(assetID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payments)
}
