// internal/services/service_test.go
package services

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/utils"
)

const day = int64(86400)

// fixture wires the full service stack over an in-memory database.
type fixture struct {
	db         *gorm.DB
	cashflow   *CashflowService
	vaults     *VaultService
	shares     *SharesService
	registry   *RegistryService
	compliance *ComplianceService
	authz      *AuthorizationService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Identity{},
		&models.WhitelistEntry{},
		&models.Asset{},
		&models.LeaseTerms{},
		&models.CashflowState{},
		&models.PaymentPeriod{},
		&models.Vault{},
		&models.VaultPosition{},
		&models.ShareLedger{},
		&models.ShareBalance{},
		&models.VaultTransfer{},
		&models.RentPayment{},
		&models.AuditLog{},
		&models.Notification{},
	))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	cfg := &config.Config{
		Ledger: config.LedgerConfig{DefaultFeeBps: 250, TimeUnitSeconds: day, MaxFeeBps: 2000},
	}
	locks := NewAssetLocks()
	notifications := NewNotificationService(db)
	cashflow := NewCashflowService(db)
	vaults := NewVaultService(db, cashflow, locks)
	shares := NewSharesService(db, vaults, locks)
	registry := NewRegistryService(db, cfg, cashflow, vaults, shares, notifications, locks)

	return &fixture{
		db:         db,
		cashflow:   cashflow,
		vaults:     vaults,
		shares:     shares,
		registry:   registry,
		compliance: NewComplianceService(db),
		authz:      NewAuthorizationService(db),
	}
}

// identity creates a KYC-approved identity with the given roles.
func (f *fixture) identity(t *testing.T, username string, roles ...string) *models.Identity {
	t.Helper()

	id := &models.Identity{
		Username:  username,
		Email:     username + "@example.com",
		Roles:     pq.StringArray(roles),
		KYCStatus: models.KYCStatusApproved,
		Status:    models.IdentityStatusActive,
	}
	require.NoError(t, id.SetPassword("TestPass123!"))
	require.NoError(t, f.db.Create(id).Error)
	return id
}

// registeredAsset registers an asset for the originator.
func (f *fixture) registeredAsset(t *testing.T, originator *models.Identity) *models.Asset {
	t.Helper()

	asset, err := f.registry.Register(originator, &RegisterAssetRequest{
		AssetType:    "residential_lease",
		Valuation:    "1000000",
		MetadataHash: utils.HashString("property deed " + originator.Username),
	})
	require.NoError(t, err)
	return asset
}

// linkedAsset registers an asset and links a one-year monthly lease:
// rent 1000, first due at day 30, 5-day grace, default 250 bps fee.
func (f *fixture) linkedAsset(t *testing.T, originator, feeRecipient *models.Identity) *models.Asset {
	t.Helper()

	asset := f.registeredAsset(t, originator)
	asset, err := f.registry.LinkComponents(asset.ID, &LinkComponentsRequest{
		RentAmount:       "1000",
		PaymentInterval:  30 * day,
		FirstDueDate:     30 * day,
		GracePeriodUnits: 5,
		EndDate:          360 * day,
		TimeUnit:         day,
		FeeRecipientID:   feeRecipient.ID.String(),
		MaxSupply:        "10000",
	}, 0)
	require.NoError(t, err)
	return asset
}

// activeAsset builds a fully activated asset whose originator is
// whitelisted.
func (f *fixture) activeAsset(t *testing.T, originator, feeRecipient, admin *models.Identity) *models.Asset {
	t.Helper()

	asset := f.linkedAsset(t, originator, feeRecipient)

	_, err := f.compliance.VerifyAsset(asset.ID)
	require.NoError(t, err)
	_, err = f.compliance.Whitelist(asset.ID, originator.ID, admin.ID)
	require.NoError(t, err)

	asset, err = f.registry.Activate(asset.ID)
	require.NoError(t, err)
	return asset
}

func (f *fixture) whitelist(t *testing.T, assetID uuid.UUID, holder *models.Identity, admin *models.Identity) {
	t.Helper()
	_, err := f.compliance.Whitelist(assetID, holder.ID, admin.ID)
	require.NoError(t, err)
}

func bigEq(t *testing.T, want int64, got models.BigInt) {
	t.Helper()
	require.Equal(t, big.NewInt(want).String(), got.String())
}
