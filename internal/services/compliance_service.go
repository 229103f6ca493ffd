// internal/services/compliance_service.go
package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

// ComplianceService manages KYC approval for identities, compliance
// verification for assets, and the per-asset holder whitelist.
type ComplianceService struct {
	db *gorm.DB
}

func NewComplianceService(db *gorm.DB) *ComplianceService {
	return &ComplianceService{db: db}
}

// ApproveKYC marks an identity as KYC approved.
func (s *ComplianceService) ApproveKYC(identityID, adminID uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.First(&identity, "id = ?", identityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("identity %s not found", identityID)
		}
		return nil, apperrors.Internal("failed to load identity", err)
	}

	if identity.KYCStatus == models.KYCStatusApproved {
		return nil, apperrors.AlreadyProcessed("identity is already KYC approved")
	}

	now := time.Now()
	identity.KYCStatus = models.KYCStatusApproved
	identity.KYCApprovedAt = &now
	identity.KYCApprovedBy = &adminID

	if err := s.db.Save(&identity).Error; err != nil {
		return nil, apperrors.Internal("failed to persist identity", err)
	}
	return &identity, nil
}

// RejectKYC marks an identity as KYC rejected.
func (s *ComplianceService) RejectKYC(identityID uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.First(&identity, "id = ?", identityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("identity %s not found", identityID)
		}
		return nil, apperrors.Internal("failed to load identity", err)
	}

	identity.KYCStatus = models.KYCStatusRejected
	if err := s.db.Save(&identity).Error; err != nil {
		return nil, apperrors.Internal("failed to persist identity", err)
	}
	return &identity, nil
}

// VerifyAsset sets the asset-level compliance flag required for activation.
func (s *ComplianceService) VerifyAsset(assetID uuid.UUID) (*models.Asset, error) {
	asset, err := assetByID(s.db, assetID)
	if err != nil {
		return nil, err
	}
	if asset.KYCVerified {
		return nil, apperrors.AlreadyProcessed("asset is already verified")
	}

	asset.KYCVerified = true
	if err := s.db.Save(asset).Error; err != nil {
		return nil, apperrors.Internal("failed to persist asset", err)
	}
	return asset, nil
}

// Whitelist approves a KYC-approved holder to own shares of one asset.
func (s *ComplianceService) Whitelist(assetID, holderID, adminID uuid.UUID) (*models.WhitelistEntry, error) {
	if _, err := assetByID(s.db, assetID); err != nil {
		return nil, err
	}

	var holder models.Identity
	if err := s.db.First(&holder, "id = ?", holderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("identity %s not found", holderID)
		}
		return nil, apperrors.Internal("failed to load identity", err)
	}
	if holder.KYCStatus != models.KYCStatusApproved {
		return nil, apperrors.State("holder has not passed KYC")
	}

	var count int64
	if err := s.db.Model(&models.WhitelistEntry{}).
		Where("asset_id = ? AND holder_id = ?", assetID, holderID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Internal("failed to check whitelist", err)
	}
	if count > 0 {
		return nil, apperrors.AlreadyProcessed("holder is already whitelisted")
	}

	entry := &models.WhitelistEntry{
		AssetID:    assetID,
		HolderID:   holderID,
		ApprovedBy: adminID,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperrors.Internal("failed to create whitelist entry", err)
	}
	return entry, nil
}

// RemoveFromWhitelist revokes a holder's whitelist entry. Existing balances
// stay; the holder just cannot receive shares or claim until re-approved.
func (s *ComplianceService) RemoveFromWhitelist(assetID, holderID uuid.UUID) error {
	result := s.db.Where("asset_id = ? AND holder_id = ?", assetID, holderID).
		Delete(&models.WhitelistEntry{})
	if result.Error != nil {
		return apperrors.Internal("failed to remove whitelist entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("holder is not whitelisted for this asset")
	}
	return nil
}
