// internal/services/registry_service_test.go
package services

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/utils"
)

func TestRegisterRequiresKYC(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	originator.KYCStatus = models.KYCStatusPending
	require.NoError(t, f.db.Save(originator).Error)

	_, err := f.registry.Register(originator, &RegisterAssetRequest{
		AssetType:    "residential_lease",
		Valuation:    "1000000",
		MetadataHash: "abc",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestRegisterRejectsBadMetadataHash(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)

	_, err := f.registry.Register(originator, &RegisterAssetRequest{
		AssetType:    "residential_lease",
		Valuation:    "1000000",
		MetadataHash: "not-a-digest",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestLinkIsSingleAssignment(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	asset := f.linkedAsset(t, originator, manager)

	assert.Equal(t, models.AssetStatusLinked, asset.Status)
	assert.NotNil(t, asset.ScheduleID)
	assert.NotNil(t, asset.VaultID)
	assert.NotNil(t, asset.ShareLedgerID)
	bigEq(t, 1000, asset.ExpectedPayment)
	assert.Equal(t, 30*day, asset.NextDueDate)
	assert.Equal(t, 360*day, asset.MaturityDate)

	_, err := f.registry.LinkComponents(asset.ID, &LinkComponentsRequest{
		RentAmount:       "1000",
		PaymentInterval:  30 * day,
		FirstDueDate:     30 * day,
		GracePeriodUnits: 5,
		EndDate:          360 * day,
		TimeUnit:         day,
		FeeRecipientID:   manager.ID.String(),
		MaxSupply:        "10000",
	}, 0)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestLinkAppliesConfiguredFeeAndTimeUnit(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)

	// An omitted fee falls back to the configured default (250 bps).
	asset := f.linkedAsset(t, originator, manager)
	vault, err := vaultByID(f.db, *asset.VaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), vault.FeeBps)

	// An explicit fee above the configured cap is rejected.
	overCap := int64(2500)
	second := f.registeredAsset(t, originator)
	_, err = f.registry.LinkComponents(second.ID, &LinkComponentsRequest{
		RentAmount:       "1000",
		PaymentInterval:  30 * day,
		FirstDueDate:     30 * day,
		GracePeriodUnits: 5,
		EndDate:          360 * day,
		FeeBps:           &overCap,
		FeeRecipientID:   manager.ID.String(),
		MaxSupply:        "10000",
	}, 0)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// An explicit zero fee is honored, not replaced by the default.
	zeroFee := int64(0)
	second, err = f.registry.LinkComponents(second.ID, &LinkComponentsRequest{
		RentAmount:       "1000",
		PaymentInterval:  30 * day,
		FirstDueDate:     30 * day,
		GracePeriodUnits: 5,
		EndDate:          360 * day,
		FeeBps:           &zeroFee,
		FeeRecipientID:   manager.ID.String(),
		MaxSupply:        "10000",
	}, 0)
	require.NoError(t, err)
	vault, err = vaultByID(f.db, *second.VaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), vault.FeeBps)

	// The omitted time unit came from the config as well.
	var lease models.LeaseTerms
	require.NoError(t, f.db.First(&lease, "id = ?", *second.ScheduleID).Error)
	assert.Equal(t, day, lease.TimeUnit)
}

func TestActivateGuards(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)

	// Not linked yet.
	registered := f.registeredAsset(t, originator)
	_, err := f.registry.Activate(registered.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))

	// Linked but not compliance verified.
	asset := f.linkedAsset(t, originator, manager)
	_, err = f.registry.Activate(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))

	// Verified but originator not whitelisted.
	_, err = f.compliance.VerifyAsset(asset.ID)
	require.NoError(t, err)
	_, err = f.registry.Activate(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	// Fully prepared.
	f.whitelist(t, asset.ID, originator, admin)
	activated, err := f.registry.Activate(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusActive, activated.Status)
	assert.NotNil(t, activated.ActivatedAt)

	// Activation is not repeatable.
	_, err = f.registry.Activate(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestRecordPaymentMirrorsEngine(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	asset, err := f.registry.RecordPayment(asset.ID, big.NewInt(1000), 30*day)
	require.NoError(t, err)
	assert.Equal(t, 30*day, asset.LastPaymentAt)
	assert.Equal(t, 60*day, asset.NextDueDate)
	bigEq(t, 1000, asset.AccumulatedYield)
	assert.Equal(t, models.LeaseHealthPerforming, asset.LastKnownHealth)
	assert.Equal(t, int64(0), asset.MissedPayments)
}

func TestRecordPaymentRequiresActive(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	asset := f.linkedAsset(t, originator, manager)

	_, err := f.registry.RecordPayment(asset.ID, big.NewInt(1000), 30*day)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestDefaultCheckTriggersOnce(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	// Two periods lapse between checks.
	triggered, asset, err := f.registry.CheckAndTriggerDefault(asset.ID, 66*day)
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, models.AssetStatusDefaulted, asset.Status)
	assert.Equal(t, models.LeaseHealthDefaulted, asset.LastKnownHealth)

	// The engine counted both periods; the registry counter only
	// increments on the transition into bad health, so it undercounts
	// when several periods lapse unobserved.
	state, err := f.cashflow.State(f.db, *asset.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.MissedPeriods)
	assert.Equal(t, int64(1), asset.MissedPayments)

	// A defaulted asset no longer accepts checks.
	_, _, err = f.registry.CheckAndTriggerDefault(asset.ID, 70*day)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))

	var notifications int64
	err = f.db.Model(&models.Notification{}).Where("type = ?", "asset_defaulted").Count(&notifications).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), notifications)
}

func TestDefaultCheckExpiresMaturedLease(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	// Pay every period so the lease completes cleanly.
	for p := int64(0); p <= 10; p++ {
		_, err := f.registry.RecordPayment(asset.ID, big.NewInt(1000), 30*day+p*30*day)
		require.NoError(t, err)
	}

	triggered, asset, err := f.registry.CheckAndTriggerDefault(asset.ID, 361*day)
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, models.AssetStatusExpired, asset.Status)
	assert.Equal(t, int64(0), asset.MissedPayments)
}

func TestPauseRestoresExactStatus(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	asset, err := f.registry.MarkUnderReview(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusUnderReview, asset.Status)

	asset, err = f.registry.Pause(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusPaused, asset.Status)
	assert.True(t, asset.Paused)

	// Paused blocks payments, checks and further pausing.
	_, err = f.registry.RecordPayment(asset.ID, big.NewInt(1000), 30*day)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
	_, _, err = f.registry.CheckAndTriggerDefault(asset.ID, 30*day)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
	_, err = f.registry.Pause(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))

	// Unpause restores UNDER_REVIEW, not ACTIVE.
	asset, err = f.registry.Unpause(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusUnderReview, asset.Status)
	assert.False(t, asset.Paused)

	_, err = f.registry.Unpause(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestPauseBlocksShareOperations(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	_, err := f.shares.Mint(*asset.ShareLedgerID, originator.ID, big.NewInt(100))
	require.NoError(t, err)

	_, err = f.registry.Pause(asset.ID)
	require.NoError(t, err)

	_, err = f.shares.Mint(*asset.ShareLedgerID, originator.ID, big.NewInt(100))
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestLiquidationPath(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)
	admin := f.identity(t, "admin", models.RoleAdmin)
	asset := f.activeAsset(t, originator, manager, admin)

	asset, err := f.registry.StartLiquidation(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusLiquidating, asset.Status)

	asset, err = f.registry.CompleteLiquidation(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusLiquidated, asset.Status)

	// LIQUIDATED is terminal.
	_, err = f.registry.StartLiquidation(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
	_, err = f.registry.Pause(asset.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindState))
}

func TestListAssetsFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	originator := f.identity(t, "originator", models.RoleOriginator)
	manager := f.identity(t, "manager", models.RoleManager)

	f.registeredAsset(t, originator)
	f.linkedAsset(t, originator, manager)

	assets, total, err := f.registry.ListAssets(utils.PaginationParams{
		Page:   1,
		Limit:  20,
		Sort:   "created_at",
		Order:  "desc",
		Status: "registered",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, assets, 1)
	assert.Equal(t, models.AssetStatusRegistered, assets[0].Status)
}
