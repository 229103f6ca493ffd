// internal/services/store.go
package services

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

// Row lookups shared by the registry, vault and share ledger services.

func assetByID(db *gorm.DB, assetID uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := db.First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("asset %s not found", assetID)
		}
		return nil, apperrors.Internal("failed to load asset", err)
	}
	return &asset, nil
}

func vaultByID(db *gorm.DB, vaultID uuid.UUID) (*models.Vault, error) {
	var vault models.Vault
	if err := db.First(&vault, "id = ?", vaultID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("vault %s not found", vaultID)
		}
		return nil, apperrors.Internal("failed to load vault", err)
	}
	return &vault, nil
}

func ledgerByID(db *gorm.DB, ledgerID uuid.UUID) (*models.ShareLedger, error) {
	var ledger models.ShareLedger
	if err := db.First(&ledger, "id = ?", ledgerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("share ledger %s not found", ledgerID)
		}
		return nil, apperrors.Internal("failed to load share ledger", err)
	}
	return &ledger, nil
}

func ledgerByVault(db *gorm.DB, vaultID uuid.UUID) (*models.ShareLedger, error) {
	var ledger models.ShareLedger
	if err := db.First(&ledger, "vault_id = ?", vaultID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("share ledger for vault %s not found", vaultID)
		}
		return nil, apperrors.Internal("failed to load share ledger", err)
	}
	return &ledger, nil
}

// holderBalance returns the holder's share balance, zero when no row exists.
func holderBalance(db *gorm.DB, ledgerID, holderID uuid.UUID) (*big.Int, error) {
	var balance models.ShareBalance
	err := db.First(&balance, "ledger_id = ? AND holder_id = ?", ledgerID, holderID).Error
	if err == nil {
		return balance.Balance.Int(), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	return nil, apperrors.Internal("failed to load share balance", err)
}

// requireWhitelisted rejects holders without an asset-level whitelist entry.
func requireWhitelisted(db *gorm.DB, assetID, holderID uuid.UUID) error {
	var count int64
	if err := db.Model(&models.WhitelistEntry{}).
		Where("asset_id = ? AND holder_id = ?", assetID, holderID).
		Count(&count).Error; err != nil {
		return apperrors.Internal("failed to check whitelist", err)
	}
	if count == 0 {
		return apperrors.Authorization("holder %s is not whitelisted for this asset", holderID)
	}
	return nil
}
