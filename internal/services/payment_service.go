// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/models"
)

// PaymentService collects rent through Stripe and, once a payment
// intent succeeds, pushes the proceeds into the asset registry and
// the asset's revenue vault.
type PaymentService struct {
	db       *gorm.DB
	config   *config.Config
	registry *RegistryService
	vaults   *VaultService
}

type CreateRentIntentRequest struct {
	AssetID uuid.UUID `json:"asset_id" validate:"required"`
	Amount  string    `json:"amount" validate:"required,amount"`
}

type RentIntentResponse struct {
	ClientSecret string    `json:"client_secret"`
	PaymentID    uuid.UUID `json:"payment_id"`
	Status       string    `json:"status"`
}

type ConfirmRentPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

func NewPaymentService(db *gorm.DB, config *config.Config, registry *RegistryService, vaults *VaultService) *PaymentService {
	stripe.Key = config.Payment.StripeSecretKey

	return &PaymentService{
		db:       db,
		config:   config,
		registry: registry,
		vaults:   vaults,
	}
}

// CreateRentIntent opens a Stripe payment intent for one rent period.
// The amount must cover the asset's current expected payment.
func (s *PaymentService) CreateRentIntent(payerID uuid.UUID, req *CreateRentIntentRequest) (*RentIntentResponse, error) {
	asset, err := s.registry.GetAsset(req.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.Status != models.AssetStatusActive || asset.Paused {
		return nil, apperrors.State("asset %s is not accepting payments", asset.ID)
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, apperrors.Validation("amount must be a positive integer")
	}
	if amount.Cmp(asset.ExpectedPayment.Int()) < 0 {
		return nil, apperrors.Validation("amount %s is below the expected payment %s", amount, asset.ExpectedPayment.String())
	}
	if !amount.IsInt64() {
		return nil, apperrors.Validation("amount exceeds the supported payment rail limit")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount.Int64()),
		Currency: stripe.String(s.config.Payment.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("asset_id", asset.ID.String())
	params.AddMetadata("payer_id", payerID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, apperrors.Internal("failed to create payment intent", err)
	}

	payment := &models.RentPayment{
		AssetID:         asset.ID,
		PayerID:         payerID,
		Amount:          models.FromInt(amount),
		PaymentIntentID: pi.ID,
		Status:          models.RentPaymentStatusPending,
	}
	if err := s.db.Create(payment).Error; err != nil {
		return nil, apperrors.Internal("failed to record rent payment", err)
	}

	return &RentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    payment.ID,
		Status:       string(pi.Status),
	}, nil
}

// ConfirmRentPayment verifies the payment intent with Stripe, records
// the rent against the asset's schedule, and deposits the proceeds
// into the asset's vault. The recording and deposit are idempotent on
// the payment row's status.
func (s *PaymentService) ConfirmRentPayment(req *ConfirmRentPaymentRequest) (*models.RentPayment, error) {
	var payment models.RentPayment
	if err := s.db.Where("payment_intent_id = ?", req.PaymentIntentID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("rent payment %s not found", req.PaymentIntentID)
		}
		return nil, apperrors.Internal("failed to load rent payment", err)
	}

	if payment.Status == models.RentPaymentStatusSucceeded {
		return nil, apperrors.AlreadyProcessed("payment %s has already been applied", payment.ID)
	}

	pi, err := paymentintent.Get(req.PaymentIntentID, nil)
	if err != nil {
		return nil, apperrors.Internal("failed to retrieve payment intent", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		payment.Status = models.RentPaymentStatusFailed
		s.db.Save(&payment)
		return nil, apperrors.State("payment intent is %s, expected succeeded", pi.Status)
	}

	now := time.Now().Unix()
	asset, err := s.registry.RecordPayment(payment.AssetID, payment.Amount.Int(), now)
	if err != nil {
		return nil, err
	}
	if asset.VaultID == nil {
		return nil, apperrors.Internal("asset has no vault", fmt.Errorf("asset %s", asset.ID))
	}
	if _, err := s.vaults.DepositRevenue(*asset.VaultID, payment.PayerID, payment.Amount.Int()); err != nil {
		return nil, err
	}

	payment.Status = models.RentPaymentStatusSucceeded
	payment.RecordedAt = &now
	if err := s.db.Save(&payment).Error; err != nil {
		return nil, apperrors.Internal("failed to update rent payment", err)
	}

	return &payment, nil
}

func (s *PaymentService) ListRentPayments(assetID uuid.UUID) ([]models.RentPayment, error) {
	var payments []models.RentPayment
	if err := s.db.Where("asset_id = ?", assetID).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, apperrors.Internal("failed to list rent payments", err)
	}
	return payments, nil
}
