// internal/services/payment_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/models"
)

// The Stripe calls themselves are not exercised here; these tests cover
// the validation that runs before any payment intent is opened.

func newPaymentService(t *testing.T) (*fixture, *PaymentService) {
	f := newFixture(t)
	cfg := &config.Config{
		Payment: config.PaymentConfig{Currency: "usd"},
	}
	return f, NewPaymentService(f.db, cfg, f.registry, f.vaults)
}

func TestRentIntentRequiresActiveAsset(t *testing.T) {
	f, payments := newPaymentService(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	asset := f.linkedAsset(t, originator, manager)

	_, err := payments.CreateRentIntent(originator.ID, &CreateRentIntentRequest{
		AssetID: asset.ID,
		Amount:  "1000",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestRentIntentRejectsShortAmount(t *testing.T) {
	f, payments := newPaymentService(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	_, err := payments.CreateRentIntent(originator.ID, &CreateRentIntentRequest{
		AssetID: asset.ID,
		Amount:  "999",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = payments.CreateRentIntent(originator.ID, &CreateRentIntentRequest{
		AssetID: asset.ID,
		Amount:  "-5",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestConfirmUnknownIntent(t *testing.T) {
	_, payments := newPaymentService(t)

	_, err := payments.ConfirmRentPayment(&ConfirmRentPaymentRequest{PaymentIntentID: "pi_missing"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
