// internal/services/compliance_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

func TestApproveKYC(t *testing.T) {
	f := newFixture(t)
	admin := f.identity(t, "admin", models.RoleAdmin)

	investor := f.identity(t, "investor", models.RoleInvestor)
	investor.KYCStatus = models.KYCStatusPending
	require.NoError(t, f.db.Save(investor).Error)

	approved, err := f.compliance.ApproveKYC(investor.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KYCStatusApproved, approved.KYCStatus)
	assert.NotNil(t, approved.KYCApprovedAt)

	_, err = f.compliance.ApproveKYC(investor.ID, admin.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyProcessed))
}

func TestWhitelistRequiresApprovedKYC(t *testing.T) {
	f := newFixture(t)
	admin := f.identity(t, "admin", models.RoleAdmin)
	originator := f.identity(t, "originator", models.RoleOriginator)
	asset := f.registeredAsset(t, originator)

	pending := f.identity(t, "pending", models.RoleInvestor)
	pending.KYCStatus = models.KYCStatusPending
	require.NoError(t, f.db.Save(pending).Error)

	_, err := f.compliance.Whitelist(asset.ID, pending.ID, admin.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestWhitelistIsIdempotentGuarded(t *testing.T) {
	f := newFixture(t)
	admin := f.identity(t, "admin", models.RoleAdmin)
	originator := f.identity(t, "originator", models.RoleOriginator)
	asset := f.registeredAsset(t, originator)

	_, err := f.compliance.Whitelist(asset.ID, originator.ID, admin.ID)
	require.NoError(t, err)

	_, err = f.compliance.Whitelist(asset.ID, originator.ID, admin.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyProcessed))

	require.NoError(t, f.compliance.RemoveFromWhitelist(asset.ID, originator.ID))
	err = f.compliance.RemoveFromWhitelist(asset.ID, originator.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestAuthorizationCapabilities(t *testing.T) {
	f := newFixture(t)

	servicer := f.identity(t, "servicer", models.RoleServicer)
	admin := f.identity(t, "admin", models.RoleAdmin)
	investor := f.identity(t, "investor", models.RoleInvestor)

	_, err := f.authz.Require(servicer.ID, CapPaymentRecord)
	assert.NoError(t, err)

	_, err = f.authz.Require(investor.ID, CapPaymentRecord)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	// Admin holds every capability.
	for _, capability := range []Capability{
		CapAssetRegister, CapPaymentRecord, CapVaultDeploy, CapSharesMint, CapComplianceManage,
	} {
		_, err = f.authz.Require(admin.ID, capability)
		assert.NoError(t, err)
	}
}

func TestAuthorizationRejectsSuspended(t *testing.T) {
	f := newFixture(t)

	servicer := f.identity(t, "servicer", models.RoleServicer)
	servicer.Status = models.IdentityStatusSuspended
	require.NoError(t, f.db.Save(servicer).Error)

	_, err := f.authz.Require(servicer.ID, CapPaymentRecord)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}
