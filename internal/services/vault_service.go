// internal/services/vault_service.go
package services

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

// rewardScale is the fixed-point factor for the cumulative reward index.
var rewardScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

const bpsDenominator = 10000

// scheduleReader is the slice of the cashflow engine the vault needs: the
// current expected payment, so a commit cannot use a stale or caller-chosen
// figure.
type scheduleReader interface {
	GetSchedule(db *gorm.DB, scheduleID uuid.UUID) (ScheduleInfo, error)
}

// VaultService performs the fee-adjusted, pro-rata reward accounting over
// the share ledger. All ledger state is written before any outbound
// VaultTransfer row, so fund movement always follows bookkeeping.
type VaultService struct {
	db       *gorm.DB
	cashflow scheduleReader
	locks    *assetLocks
}

func NewVaultService(db *gorm.DB, cashflow scheduleReader, locks *assetLocks) *VaultService {
	return &VaultService{db: db, cashflow: cashflow, locks: locks}
}

// CreateVault creates the vault for an asset inside tx.
func (s *VaultService) CreateVault(tx *gorm.DB, assetID uuid.UUID, feeBps int64, feeRecipientID uuid.UUID) (*models.Vault, error) {
	if feeBps < 0 || feeBps >= bpsDenominator {
		return nil, apperrors.Validation("fee must be between 0 and %d bps", bpsDenominator-1)
	}
	if feeRecipientID == uuid.Nil {
		return nil, apperrors.Validation("fee recipient is required")
	}

	vault := &models.Vault{
		AssetID:        assetID,
		FeeBps:         feeBps,
		FeeRecipientID: feeRecipientID,
	}
	if err := tx.Create(vault).Error; err != nil {
		return nil, apperrors.Internal("failed to create vault", err)
	}
	return vault, nil
}

// DepositRevenue moves collected funds into the idle bucket.
func (s *VaultService) DepositRevenue(vaultID, fromID uuid.UUID, amount *big.Int) (*models.Vault, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.Validation("deposit amount must be positive")
	}

	var vault *models.Vault
	err := s.withVaultLock(vaultID, func(tx *gorm.DB, v *models.Vault, asset *models.Asset) error {
		v.TotalIdle = v.TotalIdle.Add(models.FromInt(amount))
		v.LifetimeDeposits = v.LifetimeDeposits.Add(models.FromInt(amount))
		if err := tx.Save(v).Error; err != nil {
			return apperrors.Internal("failed to persist vault", err)
		}
		vault = v
		return nil
	})
	return vault, err
}

// CommitToDistribution moves the expected payment out of idle, deducts the
// protocol fee, and raises the cumulative reward index. The committed amount
// must match what the cashflow engine currently reports as the expected
// payment. With zero share supply the commit is rejected so funds stay in
// idle instead of stranding unattributably in the distributable bucket.
func (s *VaultService) CommitToDistribution(vaultID uuid.UUID, expected *big.Int) (*models.Vault, error) {
	if expected == nil || expected.Sign() <= 0 {
		return nil, apperrors.Validation("commit amount must be positive")
	}

	var vault *models.Vault
	err := s.withVaultLock(vaultID, func(tx *gorm.DB, v *models.Vault, asset *models.Asset) error {
		if asset.Status != models.AssetStatusActive {
			return apperrors.State("asset is not active")
		}
		if asset.ScheduleID == nil {
			return apperrors.State("asset has no linked schedule")
		}

		info, err := s.cashflow.GetSchedule(tx, *asset.ScheduleID)
		if err != nil {
			return err
		}
		if expected.Cmp(info.ExpectedPayment.Int()) != 0 {
			return apperrors.Validation("commit amount %s does not match the expected payment %s", expected, info.ExpectedPayment.String())
		}

		if v.TotalIdle.Int().Cmp(expected) < 0 {
			return apperrors.InsufficientFunds("idle funds %s are below the commit amount %s", v.TotalIdle.String(), expected)
		}

		ledger, err := ledgerByVault(tx, v.ID)
		if err != nil {
			return err
		}
		supply := ledger.TotalSupply.Int()
		if supply.Sign() == 0 {
			return apperrors.Validation("no shares outstanding, funds remain idle")
		}

		fee := new(big.Int).Mul(expected, big.NewInt(v.FeeBps))
		fee.Div(fee, big.NewInt(bpsDenominator))
		net := new(big.Int).Sub(expected, fee)

		v.TotalIdle = models.FromInt(new(big.Int).Sub(v.TotalIdle.Int(), expected))
		v.AccumulatedFees = v.AccumulatedFees.Add(models.FromInt(fee))
		v.TotalDistributable = v.TotalDistributable.Add(models.FromInt(net))

		// acc += net * SCALE / supply
		delta := new(big.Int).Mul(net, rewardScale)
		delta.Div(delta, supply)
		v.AccRewardPerShare = v.AccRewardPerShare.Add(models.FromInt(delta))

		if err := tx.Save(v).Error; err != nil {
			return apperrors.Internal("failed to persist vault", err)
		}
		vault = v
		return nil
	})
	return vault, err
}

// SettleForBalanceChange runs the per-holder settlement around a balance
// change: accrued reward is computed with the pre-change balance, then the
// reward debt is reset with the post-change balance. The share ledger calls
// this for every account whose balance changes, before writing the balance.
func (s *VaultService) SettleForBalanceChange(tx *gorm.DB, vaultID, holderID uuid.UUID, preBalance, postBalance *big.Int) error {
	vault, err := vaultByID(tx, vaultID)
	if err != nil {
		return err
	}
	return s.settle(tx, vault, holderID, preBalance, postBalance)
}

func (s *VaultService) settle(tx *gorm.DB, vault *models.Vault, holderID uuid.UUID, preBalance, postBalance *big.Int) error {
	pos, err := s.position(tx, vault.ID, holderID)
	if err != nil {
		return err
	}

	acc := vault.AccRewardPerShare.Int()

	accounted := new(big.Int).Mul(preBalance, acc)
	accounted.Div(accounted, rewardScale)
	accrued := accounted.Sub(accounted, pos.RewardDebt.Int())
	if accrued.Sign() > 0 {
		pos.PendingRewards = pos.PendingRewards.Add(models.FromInt(accrued))
	}

	debt := new(big.Int).Mul(postBalance, acc)
	debt.Div(debt, rewardScale)
	pos.RewardDebt = models.FromInt(debt)

	if err := tx.Save(pos).Error; err != nil {
		return apperrors.Internal("failed to persist vault position", err)
	}
	return nil
}

// ClaimYield settles the caller and pays out their pending rewards. All
// vault and position state is updated before the outbound transfer row is
// written.
func (s *VaultService) ClaimYield(vaultID, holderID uuid.UUID) (*models.VaultTransfer, error) {
	var transfer *models.VaultTransfer
	err := s.withVaultLock(vaultID, func(tx *gorm.DB, v *models.Vault, asset *models.Asset) error {
		if asset.Status != models.AssetStatusActive {
			return apperrors.State("asset is not active")
		}
		if err := requireWhitelisted(tx, asset.ID, holderID); err != nil {
			return err
		}

		ledger, err := ledgerByVault(tx, v.ID)
		if err != nil {
			return err
		}
		balance, err := holderBalance(tx, ledger.ID, holderID)
		if err != nil {
			return err
		}

		if err := s.settle(tx, v, holderID, balance, balance); err != nil {
			return err
		}

		pos, err := s.position(tx, v.ID, holderID)
		if err != nil {
			return err
		}
		pending := pos.PendingRewards.Int()
		if pending.Sign() == 0 {
			return apperrors.AlreadyProcessed("no pending rewards to claim")
		}
		if pending.Cmp(v.TotalDistributable.Int()) > 0 {
			return apperrors.InsufficientFunds("pending rewards %s exceed the distributable bucket %s", pending, v.TotalDistributable.String())
		}

		pos.PendingRewards = models.NewBigInt(0)
		v.TotalDistributable = models.FromInt(new(big.Int).Sub(v.TotalDistributable.Int(), pending))

		if err := tx.Save(pos).Error; err != nil {
			return apperrors.Internal("failed to persist vault position", err)
		}
		if err := tx.Save(v).Error; err != nil {
			return apperrors.Internal("failed to persist vault", err)
		}

		transfer = &models.VaultTransfer{
			VaultID:     v.ID,
			RecipientID: holderID,
			Type:        models.VaultTransferYieldClaim,
			Amount:      models.FromInt(pending),
		}
		if err := tx.Create(transfer).Error; err != nil {
			return apperrors.Internal("failed to record payout", err)
		}
		return nil
	})
	return transfer, err
}

// DeployCapital debits the idle bucket for off-ledger deployment.
func (s *VaultService) DeployCapital(vaultID, recipientID uuid.UUID, amount *big.Int) (*models.VaultTransfer, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.Validation("deployment amount must be positive")
	}

	var transfer *models.VaultTransfer
	err := s.withVaultLock(vaultID, func(tx *gorm.DB, v *models.Vault, asset *models.Asset) error {
		if asset.Status != models.AssetStatusActive {
			return apperrors.State("asset is not active")
		}
		if v.TotalIdle.Int().Cmp(amount) < 0 {
			return apperrors.InsufficientFunds("idle funds %s are below the requested amount %s", v.TotalIdle.String(), amount)
		}

		v.TotalIdle = models.FromInt(new(big.Int).Sub(v.TotalIdle.Int(), amount))
		if err := tx.Save(v).Error; err != nil {
			return apperrors.Internal("failed to persist vault", err)
		}

		transfer = &models.VaultTransfer{
			VaultID:     v.ID,
			RecipientID: recipientID,
			Type:        models.VaultTransferCapitalDeployment,
			Amount:      models.FromInt(amount),
		}
		if err := tx.Create(transfer).Error; err != nil {
			return apperrors.Internal("failed to record deployment", err)
		}
		return nil
	})
	return transfer, err
}

// WithdrawFees pays accumulated protocol fees to the fee recipient.
func (s *VaultService) WithdrawFees(vaultID uuid.UUID, amount *big.Int) (*models.VaultTransfer, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.Validation("withdrawal amount must be positive")
	}

	var transfer *models.VaultTransfer
	err := s.withVaultLock(vaultID, func(tx *gorm.DB, v *models.Vault, asset *models.Asset) error {
		if v.AccumulatedFees.Int().Cmp(amount) < 0 {
			return apperrors.InsufficientFunds("accumulated fees %s are below the requested amount %s", v.AccumulatedFees.String(), amount)
		}

		v.AccumulatedFees = models.FromInt(new(big.Int).Sub(v.AccumulatedFees.Int(), amount))
		if err := tx.Save(v).Error; err != nil {
			return apperrors.Internal("failed to persist vault", err)
		}

		transfer = &models.VaultTransfer{
			VaultID:     v.ID,
			RecipientID: v.FeeRecipientID,
			Type:        models.VaultTransferFeeWithdrawal,
			Amount:      models.FromInt(amount),
		}
		if err := tx.Create(transfer).Error; err != nil {
			return apperrors.Internal("failed to record fee withdrawal", err)
		}
		return nil
	})
	return transfer, err
}

// GetVault returns the vault's current buckets and reward index.
func (s *VaultService) GetVault(vaultID uuid.UUID) (*models.Vault, error) {
	return vaultByID(s.db, vaultID)
}

// AvailableForInvestors is the distributable bucket.
func (s *VaultService) AvailableForInvestors(vaultID uuid.UUID) (models.BigInt, error) {
	vault, err := vaultByID(s.db, vaultID)
	if err != nil {
		return models.BigInt{}, err
	}
	return vault.TotalDistributable, nil
}

// AvailableForDeployment is the idle bucket.
func (s *VaultService) AvailableForDeployment(vaultID uuid.UUID) (models.BigInt, error) {
	vault, err := vaultByID(s.db, vaultID)
	if err != nil {
		return models.BigInt{}, err
	}
	return vault.TotalIdle, nil
}

// PendingRewards settles nothing; it reports what a claim would pay now.
func (s *VaultService) PendingRewards(vaultID, holderID uuid.UUID) (models.BigInt, error) {
	vault, err := vaultByID(s.db, vaultID)
	if err != nil {
		return models.BigInt{}, err
	}
	ledger, err := ledgerByVault(s.db, vaultID)
	if err != nil {
		return models.BigInt{}, err
	}
	balance, err := holderBalance(s.db, ledger.ID, holderID)
	if err != nil {
		return models.BigInt{}, err
	}
	pos, err := s.position(s.db, vaultID, holderID)
	if err != nil {
		return models.BigInt{}, err
	}

	accounted := new(big.Int).Mul(balance, vault.AccRewardPerShare.Int())
	accounted.Div(accounted, rewardScale)
	accrued := accounted.Sub(accounted, pos.RewardDebt.Int())
	pending := pos.PendingRewards.Int()
	if accrued.Sign() > 0 {
		pending.Add(pending, accrued)
	}
	return models.FromInt(pending), nil
}

// withVaultLock serializes the operation per asset and wraps it in one
// transaction, so each vault operation commits or rolls back as a unit.
func (s *VaultService) withVaultLock(vaultID uuid.UUID, fn func(tx *gorm.DB, v *models.Vault, asset *models.Asset) error) error {
	vault, err := vaultByID(s.db, vaultID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(vault.AssetID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		v, err := vaultByID(tx, vaultID)
		if err != nil {
			return err
		}
		asset, err := assetByID(tx, v.AssetID)
		if err != nil {
			return err
		}
		return fn(tx, v, asset)
	})
}

// position loads the holder's position, or a fresh zero position when none
// exists yet. The fresh row is not persisted here; only mutating settlements
// write it, so read paths never insert.
func (s *VaultService) position(db *gorm.DB, vaultID, holderID uuid.UUID) (*models.VaultPosition, error) {
	var pos models.VaultPosition
	err := db.First(&pos, "vault_id = ? AND holder_id = ?", vaultID, holderID).Error
	if err == nil {
		return &pos, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("failed to load vault position", err)
	}
	return &models.VaultPosition{VaultID: vaultID, HolderID: holderID}, nil
}
