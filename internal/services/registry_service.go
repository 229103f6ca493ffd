// internal/services/registry_service.go
package services

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/schedule"
	"github.com/rafat/cronosflow/internal/utils"
)

// cashflowEngine is the slice of the engine the registry drives. Delegating
// payment recording and default evaluation to the engine first keeps the
// registry's mirror of the schedule from diverging.
type cashflowEngine interface {
	CreateSchedule(tx *gorm.DB, assetID uuid.UUID, terms schedule.Terms, now int64) (*models.LeaseTerms, error)
	RecordPayment(tx *gorm.DB, scheduleID uuid.UUID, amount *big.Int, ts int64) (*models.CashflowState, error)
	Evaluate(tx *gorm.DB, scheduleID uuid.UUID, ts int64) (schedule.Health, *models.CashflowState, error)
	GetSchedule(db *gorm.DB, scheduleID uuid.UUID) (ScheduleInfo, error)
	Preview(scheduleID uuid.UUID, ts int64) (schedule.Health, error)
}

type vaultFactory interface {
	CreateVault(tx *gorm.DB, assetID uuid.UUID, feeBps int64, feeRecipientID uuid.UUID) (*models.Vault, error)
}

type ledgerFactory interface {
	CreateLedger(tx *gorm.DB, assetID, vaultID uuid.UUID, maxSupply *big.Int) (*models.ShareLedger, error)
}

// RegistryService is the asset lifecycle state machine. It owns every status
// transition; the other services only read asset status.
type RegistryService struct {
	db            *gorm.DB
	config        *config.Config
	cashflow      cashflowEngine
	vaults        vaultFactory
	ledgers       ledgerFactory
	notifications *NotificationService
	locks         *assetLocks
}

func NewRegistryService(db *gorm.DB, cfg *config.Config, cashflow cashflowEngine, vaults vaultFactory, ledgers ledgerFactory, notifications *NotificationService, locks *assetLocks) *RegistryService {
	return &RegistryService{
		db:            db,
		config:        cfg,
		cashflow:      cashflow,
		vaults:        vaults,
		ledgers:       ledgers,
		notifications: notifications,
		locks:         locks,
	}
}

type RegisterAssetRequest struct {
	AssetType    string `json:"asset_type" validate:"required,max=100"`
	Valuation    string `json:"valuation" validate:"required,amount"`
	MetadataHash string `json:"metadata_hash" validate:"required"`
}

// LinkComponentsRequest carries the setup parameters for all three linked
// components; they are created and linked in one transaction so a LINKED
// asset always has a complete, valid component set. TimeUnit and FeeBps may
// be omitted; the configured ledger defaults apply.
type LinkComponentsRequest struct {
	RentAmount       string `json:"rent_amount" validate:"required,amount"`
	PaymentInterval  int64  `json:"payment_interval" validate:"required,gt=0"`
	FirstDueDate     int64  `json:"first_due_date" validate:"required,gt=0"`
	GracePeriodUnits int64  `json:"grace_period_units" validate:"gte=0"`
	EndDate          int64  `json:"end_date" validate:"required,gt=0"`
	TimeUnit         int64  `json:"time_unit" validate:"gte=0"`
	FeeBps           *int64 `json:"fee_bps" validate:"omitempty,gte=0"`
	FeeRecipientID   string `json:"fee_recipient_id" validate:"required,uuid"`
	MaxSupply        string `json:"max_supply" validate:"required,amount"`
}

// Register creates a new asset for a KYC-approved originator.
func (s *RegistryService) Register(originator *models.Identity, req *RegisterAssetRequest) (*models.Asset, error) {
	if originator.KYCStatus != models.KYCStatusApproved {
		return nil, apperrors.Authorization("originator has not passed KYC")
	}
	valuation, err := models.NewBigIntFromString(req.Valuation)
	if err != nil {
		return nil, apperrors.Validation("invalid valuation: %v", err)
	}
	if !utils.ValidMetadataHash(req.MetadataHash) {
		return nil, apperrors.Validation("metadata hash must be a sha256 hex digest")
	}

	asset := &models.Asset{
		AssetType:    req.AssetType,
		OriginatorID: originator.ID,
		Valuation:    valuation,
		Status:       models.AssetStatusRegistered,
		RegisteredAt: time.Now(),
		MetadataHash: req.MetadataHash,
	}
	if err := s.db.Create(asset).Error; err != nil {
		return nil, apperrors.Internal("failed to create asset", err)
	}
	return asset, nil
}

// LinkComponents creates the lease schedule, vault and share ledger and
// links them to the asset. References are single-assignment: linking twice
// is rejected.
func (s *RegistryService) LinkComponents(assetID uuid.UUID, req *LinkComponentsRequest, now int64) (*models.Asset, error) {
	rent, err := models.NewBigIntFromString(req.RentAmount)
	if err != nil {
		return nil, apperrors.Validation("invalid rent amount: %v", err)
	}
	maxSupply, err := models.NewBigIntFromString(req.MaxSupply)
	if err != nil {
		return nil, apperrors.Validation("invalid max supply: %v", err)
	}
	feeRecipientID, err := uuid.Parse(req.FeeRecipientID)
	if err != nil {
		return nil, apperrors.Validation("invalid fee recipient id")
	}

	feeBps := s.config.Ledger.DefaultFeeBps
	if req.FeeBps != nil {
		feeBps = *req.FeeBps
	}
	if feeBps < 0 || feeBps > s.config.Ledger.MaxFeeBps {
		return nil, apperrors.Validation("fee must be between 0 and %d bps", s.config.Ledger.MaxFeeBps)
	}
	timeUnit := req.TimeUnit
	if timeUnit == 0 {
		timeUnit = s.config.Ledger.TimeUnitSeconds
	}

	var out *models.Asset
	err = s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if asset.Status != models.AssetStatusRegistered {
			return apperrors.State("components can only be linked to a registered asset, current status is %s", asset.Status)
		}
		if asset.Linked() {
			return apperrors.State("components are already linked")
		}

		lease, err := s.cashflow.CreateSchedule(tx, asset.ID, schedule.Terms{
			RentAmount:       rent.Int(),
			PaymentInterval:  req.PaymentInterval,
			FirstDueDate:     req.FirstDueDate,
			GracePeriodUnits: req.GracePeriodUnits,
			EndDate:          req.EndDate,
			TimeUnit:         timeUnit,
		}, now)
		if err != nil {
			return err
		}

		vault, err := s.vaults.CreateVault(tx, asset.ID, feeBps, feeRecipientID)
		if err != nil {
			return err
		}

		ledger, err := s.ledgers.CreateLedger(tx, asset.ID, vault.ID, maxSupply.Int())
		if err != nil {
			return err
		}

		asset.ScheduleID = &lease.ID
		asset.VaultID = &vault.ID
		asset.ShareLedgerID = &ledger.ID
		asset.ExpectedPayment = lease.RentAmount
		asset.NextDueDate = lease.FirstDueDate
		asset.MaturityDate = lease.EndDate
		asset.Status = models.AssetStatusLinked

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return out, err
}

// Activate moves a fully linked, compliance-verified asset into service.
// The originator must be whitelisted so the initial share mint can settle.
func (s *RegistryService) Activate(assetID uuid.UUID) (*models.Asset, error) {
	var out *models.Asset
	err := s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if asset.Status != models.AssetStatusLinked {
			return apperrors.State("only a linked asset can be activated, current status is %s", asset.Status)
		}
		if !asset.Linked() {
			return apperrors.State("asset components are not fully linked")
		}
		if !asset.KYCVerified {
			return apperrors.State("asset has not been compliance verified")
		}
		if err := requireWhitelisted(tx, asset.ID, asset.OriginatorID); err != nil {
			return err
		}

		now := time.Now()
		asset.Status = models.AssetStatusActive
		asset.ActivatedAt = &now

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return out, err
}

// RecordPayment applies a rent payment. The engine is updated first; the
// registry mirror only refreshes afterwards, inside the same transaction.
func (s *RegistryService) RecordPayment(assetID uuid.UUID, amount *big.Int, ts int64) (*models.Asset, error) {
	var out *models.Asset
	err := s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if asset.Paused {
			return apperrors.State("asset is paused")
		}
		if asset.Status != models.AssetStatusActive {
			return apperrors.State("payments are only accepted while the asset is active, current status is %s", asset.Status)
		}

		state, err := s.cashflow.RecordPayment(tx, *asset.ScheduleID, amount, ts)
		if err != nil {
			return err
		}

		info, err := s.cashflow.GetSchedule(tx, *asset.ScheduleID)
		if err != nil {
			return err
		}

		asset.LastPaymentAt = ts
		asset.AccumulatedYield = asset.AccumulatedYield.Add(models.FromInt(amount))
		asset.DaysInDefault = 0
		asset.NextDueDate = info.NextDueDate
		asset.LastKnownHealth = state.Health
		if amount.Cmp(asset.ExpectedPayment.Int()) >= 0 {
			asset.MissedPayments = 0
		}

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return out, err
}

// CheckAndTriggerDefault runs a mutating health evaluation and mirrors the
// engine's verdict onto the asset status. It returns whether an actionable
// transition occurred, so the caller knows follow-up action is warranted.
//
// The registry's own missed counter only increments on a transition into a
// bad health state; when several periods lapse between checks it undercounts
// relative to the engine's period-indexed count. That divergence is
// intentional and covered by tests.
func (s *RegistryService) CheckAndTriggerDefault(assetID uuid.UUID, ts int64) (bool, *models.Asset, error) {
	triggered := false
	var out *models.Asset
	err := s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if asset.Paused {
			return apperrors.State("asset is paused")
		}
		if asset.Status != models.AssetStatusActive && asset.Status != models.AssetStatusUnderReview {
			return apperrors.State("default checks only apply to active or under-review assets, current status is %s", asset.Status)
		}

		health, _, err := s.cashflow.Evaluate(tx, *asset.ScheduleID, ts)
		if err != nil {
			return err
		}

		info, err := s.cashflow.GetSchedule(tx, *asset.ScheduleID)
		if err != nil {
			return err
		}
		asset.NextDueDate = info.NextDueDate
		asset.ExpectedPayment = info.ExpectedPayment
		asset.MaturityDate = info.MaturityDate

		if health.Health.Bad() && !asset.LastKnownHealth.Bad() {
			asset.MissedPayments++
		}
		asset.LastKnownHealth = health.Health

		switch health.Status {
		case models.AssetStatusDefaulted:
			asset.DaysInDefault = health.UnitsPastDue
			if asset.Status != models.AssetStatusDefaulted {
				asset.Status = models.AssetStatusDefaulted
				triggered = true
				s.notifications.Notify(tx, asset.ID, "asset_defaulted", "Asset defaulted",
					fmt.Sprintf("Asset %s defaulted with %d missed payments", asset.ID, asset.MissedPayments),
					models.NotificationPriorityHigh)
			}
		case models.AssetStatusExpired:
			asset.Status = models.AssetStatusExpired
			triggered = true
			s.notifications.Notify(tx, asset.ID, "asset_expired", "Lease completed",
				fmt.Sprintf("Asset %s reached maturity", asset.ID),
				models.NotificationPriorityMedium)
		}

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return triggered, out, err
}

// Pause saves the current status and overlays PAUSED. Payments, default
// checks and share transfers are blocked until unpause.
func (s *RegistryService) Pause(assetID uuid.UUID) (*models.Asset, error) {
	var out *models.Asset
	err := s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if asset.Paused {
			return apperrors.State("asset is already paused")
		}
		if asset.Status.Terminal() {
			return apperrors.State("cannot pause a %s asset", asset.Status)
		}

		asset.StatusBeforePause = asset.Status
		asset.Status = models.AssetStatusPaused
		asset.Paused = true

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return out, err
}

// Unpause restores the exact status saved at pause time.
func (s *RegistryService) Unpause(assetID uuid.UUID) (*models.Asset, error) {
	var out *models.Asset
	err := s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if !asset.Paused {
			return apperrors.State("asset is not paused")
		}

		asset.Status = asset.StatusBeforePause
		asset.StatusBeforePause = ""
		asset.Paused = false

		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return out, err
}

// MarkUnderReview flags an active asset for manual review.
func (s *RegistryService) MarkUnderReview(assetID uuid.UUID) (*models.Asset, error) {
	return s.transition(assetID, models.AssetStatusUnderReview, models.AssetStatusActive)
}

// StartLiquidation begins liquidation of a distressed asset.
func (s *RegistryService) StartLiquidation(assetID uuid.UUID) (*models.Asset, error) {
	return s.transition(assetID, models.AssetStatusLiquidating,
		models.AssetStatusActive, models.AssetStatusUnderReview, models.AssetStatusDefaulted)
}

// CompleteLiquidation finalizes liquidation. LIQUIDATED is terminal.
func (s *RegistryService) CompleteLiquidation(assetID uuid.UUID) (*models.Asset, error) {
	asset, err := s.transition(assetID, models.AssetStatusLiquidated, models.AssetStatusLiquidating)
	if err != nil {
		return nil, err
	}
	s.notifications.Notify(s.db, asset.ID, "asset_liquidated", "Asset liquidated",
		fmt.Sprintf("Asset %s finished liquidation", asset.ID),
		models.NotificationPriorityHigh)
	return asset, nil
}

func (s *RegistryService) transition(assetID uuid.UUID, to models.AssetStatus, from ...models.AssetStatus) (*models.Asset, error) {
	var out *models.Asset
	err := s.withAssetLock(assetID, func(tx *gorm.DB, asset *models.Asset) error {
		if asset.Paused {
			return apperrors.State("asset is paused")
		}
		allowed := false
		for _, f := range from {
			if asset.Status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperrors.State("cannot move a %s asset to %s", asset.Status, to)
		}

		asset.Status = to
		if err := tx.Save(asset).Error; err != nil {
			return apperrors.Internal("failed to persist asset", err)
		}
		out = asset
		return nil
	})
	return out, err
}

// GetAsset returns an asset with its originator.
func (s *RegistryService) GetAsset(assetID uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.Preload("Originator").First(&asset, "id = ?", assetID).Error; err != nil {
		return nil, apperrors.NotFound("asset %s not found", assetID)
	}
	return &asset, nil
}

// ListAssets returns assets newest first, optionally filtered by status.
func (s *RegistryService) ListAssets(params utils.PaginationParams) ([]models.Asset, int64, error) {
	query := s.db.Model(&models.Asset{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count assets", err)
	}

	var assets []models.Asset
	query = utils.ApplySort(query, params, []string{"created_at", "status", "asset_type"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&assets).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to list assets", err)
	}
	return assets, total, nil
}

// Schedule returns the schedule triple for an asset.
func (s *RegistryService) Schedule(assetID uuid.UUID) (ScheduleInfo, error) {
	asset, err := assetByID(s.db, assetID)
	if err != nil {
		return ScheduleInfo{}, err
	}
	if asset.ScheduleID == nil {
		return ScheduleInfo{}, apperrors.State("asset has no linked schedule")
	}
	return s.cashflow.GetSchedule(s.db, *asset.ScheduleID)
}

// PreviewHealth computes the health at ts without mutating anything.
func (s *RegistryService) PreviewHealth(assetID uuid.UUID, ts int64) (schedule.Health, error) {
	asset, err := assetByID(s.db, assetID)
	if err != nil {
		return schedule.Health{}, err
	}
	if asset.ScheduleID == nil {
		return schedule.Health{}, apperrors.State("asset has no linked schedule")
	}
	return s.cashflow.Preview(*asset.ScheduleID, ts)
}

func (s *RegistryService) withAssetLock(assetID uuid.UUID, fn func(tx *gorm.DB, asset *models.Asset) error) error {
	unlock := s.locks.Lock(assetID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		asset, err := assetByID(tx, assetID)
		if err != nil {
			return err
		}
		return fn(tx, asset)
	})
}
