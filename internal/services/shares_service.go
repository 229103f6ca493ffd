// internal/services/shares_service.go
package services

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

// settler is the vault notification hook: it must run for every account
// whose balance changes, with the pre-change balance feeding the settlement
// and the post-change balance resetting the reward debt.
type settler interface {
	SettleForBalanceChange(tx *gorm.DB, vaultID, holderID uuid.UUID, preBalance, postBalance *big.Int) error
}

// SharesService is the fungible ownership-share ledger: capped supply,
// whitelist-gated holders, and vault settlement around every balance change.
type SharesService struct {
	db    *gorm.DB
	vault settler
	locks *assetLocks
}

func NewSharesService(db *gorm.DB, vault settler, locks *assetLocks) *SharesService {
	return &SharesService{db: db, vault: vault, locks: locks}
}

// CreateLedger creates an asset's share ledger inside tx.
func (s *SharesService) CreateLedger(tx *gorm.DB, assetID, vaultID uuid.UUID, maxSupply *big.Int) (*models.ShareLedger, error) {
	if maxSupply == nil || maxSupply.Sign() <= 0 {
		return nil, apperrors.Validation("max supply must be positive")
	}

	ledger := &models.ShareLedger{
		AssetID:   assetID,
		VaultID:   vaultID,
		MaxSupply: models.FromInt(maxSupply),
	}
	if err := tx.Create(ledger).Error; err != nil {
		return nil, apperrors.Internal("failed to create share ledger", err)
	}
	return ledger, nil
}

// Mint issues shares to a whitelisted holder of an active, unpaused asset.
func (s *SharesService) Mint(ledgerID, holderID uuid.UUID, amount *big.Int) (*models.ShareLedger, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.Validation("mint amount must be positive")
	}

	var out *models.ShareLedger
	err := s.withLedgerLock(ledgerID, func(tx *gorm.DB, ledger *models.ShareLedger, asset *models.Asset) error {
		if err := requireTransactable(asset); err != nil {
			return err
		}
		if err := requireWhitelisted(tx, asset.ID, holderID); err != nil {
			return err
		}

		newSupply := new(big.Int).Add(ledger.TotalSupply.Int(), amount)
		if newSupply.Cmp(ledger.MaxSupply.Int()) > 0 {
			return apperrors.Validation("mint would exceed the max supply %s", ledger.MaxSupply.String())
		}

		pre, err := holderBalance(tx, ledger.ID, holderID)
		if err != nil {
			return err
		}
		post := new(big.Int).Add(pre, amount)

		if err := s.vault.SettleForBalanceChange(tx, ledger.VaultID, holderID, pre, post); err != nil {
			return err
		}
		if err := s.writeBalance(tx, ledger.ID, holderID, post); err != nil {
			return err
		}

		ledger.TotalSupply = models.FromInt(newSupply)
		if err := tx.Save(ledger).Error; err != nil {
			return apperrors.Internal("failed to persist share ledger", err)
		}
		out = ledger
		return nil
	})
	return out, err
}

// Burn retires shares from a holder.
func (s *SharesService) Burn(ledgerID, holderID uuid.UUID, amount *big.Int) (*models.ShareLedger, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.Validation("burn amount must be positive")
	}

	var out *models.ShareLedger
	err := s.withLedgerLock(ledgerID, func(tx *gorm.DB, ledger *models.ShareLedger, asset *models.Asset) error {
		if err := requireTransactable(asset); err != nil {
			return err
		}

		pre, err := holderBalance(tx, ledger.ID, holderID)
		if err != nil {
			return err
		}
		if pre.Cmp(amount) < 0 {
			return apperrors.InsufficientFunds("balance %s is below the burn amount %s", pre, amount)
		}
		post := new(big.Int).Sub(pre, amount)

		if err := s.vault.SettleForBalanceChange(tx, ledger.VaultID, holderID, pre, post); err != nil {
			return err
		}
		if err := s.writeBalance(tx, ledger.ID, holderID, post); err != nil {
			return err
		}

		ledger.TotalSupply = models.FromInt(new(big.Int).Sub(ledger.TotalSupply.Int(), amount))
		if err := tx.Save(ledger).Error; err != nil {
			return apperrors.Internal("failed to persist share ledger", err)
		}
		out = ledger
		return nil
	})
	return out, err
}

// Transfer moves shares between two whitelisted holders. Both sides settle
// before their balances change, so already-accrued reward stays with the
// sender and only the future earning rate moves.
func (s *SharesService) Transfer(ledgerID, fromID, toID uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return apperrors.Validation("transfer amount must be positive")
	}
	if fromID == toID {
		return apperrors.Validation("cannot transfer to self")
	}

	return s.withLedgerLock(ledgerID, func(tx *gorm.DB, ledger *models.ShareLedger, asset *models.Asset) error {
		if err := requireTransactable(asset); err != nil {
			return err
		}
		if err := requireWhitelisted(tx, asset.ID, fromID); err != nil {
			return err
		}
		if err := requireWhitelisted(tx, asset.ID, toID); err != nil {
			return err
		}

		fromPre, err := holderBalance(tx, ledger.ID, fromID)
		if err != nil {
			return err
		}
		if fromPre.Cmp(amount) < 0 {
			return apperrors.InsufficientFunds("balance %s is below the transfer amount %s", fromPre, amount)
		}
		toPre, err := holderBalance(tx, ledger.ID, toID)
		if err != nil {
			return err
		}

		fromPost := new(big.Int).Sub(fromPre, amount)
		toPost := new(big.Int).Add(toPre, amount)

		if err := s.vault.SettleForBalanceChange(tx, ledger.VaultID, fromID, fromPre, fromPost); err != nil {
			return err
		}
		if err := s.vault.SettleForBalanceChange(tx, ledger.VaultID, toID, toPre, toPost); err != nil {
			return err
		}

		if err := s.writeBalance(tx, ledger.ID, fromID, fromPost); err != nil {
			return err
		}
		return s.writeBalance(tx, ledger.ID, toID, toPost)
	})
}

// BalanceOf returns a holder's share balance.
func (s *SharesService) BalanceOf(ledgerID, holderID uuid.UUID) (models.BigInt, error) {
	balance, err := holderBalance(s.db, ledgerID, holderID)
	if err != nil {
		return models.BigInt{}, err
	}
	return models.FromInt(balance), nil
}

// OwnershipShareBps returns the holder's ownership share in basis points.
func (s *SharesService) OwnershipShareBps(ledgerID, holderID uuid.UUID) (int64, error) {
	ledger, err := ledgerByID(s.db, ledgerID)
	if err != nil {
		return 0, err
	}
	supply := ledger.TotalSupply.Int()
	if supply.Sign() == 0 {
		return 0, nil
	}
	balance, err := holderBalance(s.db, ledgerID, holderID)
	if err != nil {
		return 0, err
	}

	bps := new(big.Int).Mul(balance, big.NewInt(bpsDenominator))
	bps.Div(bps, supply)
	return bps.Int64(), nil
}

// GetLedger returns the ledger's supply figures.
func (s *SharesService) GetLedger(ledgerID uuid.UUID) (*models.ShareLedger, error) {
	return ledgerByID(s.db, ledgerID)
}

func (s *SharesService) withLedgerLock(ledgerID uuid.UUID, fn func(tx *gorm.DB, ledger *models.ShareLedger, asset *models.Asset) error) error {
	ledger, err := ledgerByID(s.db, ledgerID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(ledger.AssetID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		l, err := ledgerByID(tx, ledgerID)
		if err != nil {
			return err
		}
		asset, err := assetByID(tx, l.AssetID)
		if err != nil {
			return err
		}
		return fn(tx, l, asset)
	})
}

func (s *SharesService) writeBalance(tx *gorm.DB, ledgerID, holderID uuid.UUID, balance *big.Int) error {
	var row models.ShareBalance
	err := tx.First(&row, "ledger_id = ? AND holder_id = ?", ledgerID, holderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.ShareBalance{
			LedgerID: ledgerID,
			HolderID: holderID,
			Balance:  models.FromInt(balance),
		}
		if err := tx.Create(&row).Error; err != nil {
			return apperrors.Internal("failed to create share balance", err)
		}
		return nil
	}
	if err != nil {
		return apperrors.Internal("failed to load share balance", err)
	}

	row.Balance = models.FromInt(balance)
	if err := tx.Save(&row).Error; err != nil {
		return apperrors.Internal("failed to persist share balance", err)
	}
	return nil
}

// requireTransactable gates balance-affecting operations: the asset must be
// active and not under the pause overlay.
func requireTransactable(asset *models.Asset) error {
	if asset.Paused {
		return apperrors.State("asset is paused")
	}
	if asset.Status != models.AssetStatusActive {
		return apperrors.State("asset is not active")
	}
	return nil
}
