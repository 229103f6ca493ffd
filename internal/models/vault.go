// internal/models/vault.go
package models

import (
	"github.com/google/uuid"
)

// Vault holds an asset's collected funds split into an idle bucket (not yet
// committed to distribution) and a distributable bucket (committed, awaiting
// holder claims). AccRewardPerShare is the monotonically non-decreasing
// cumulative reward index, scaled by 1e18.
type Vault struct {
	BaseModel
	AssetID            uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex"`
	TotalIdle          BigInt    `json:"total_idle"`
	TotalDistributable BigInt    `json:"total_distributable"`
	AccRewardPerShare  BigInt    `json:"acc_reward_per_share"`
	AccumulatedFees    BigInt    `json:"accumulated_fees"`
	LifetimeDeposits   BigInt    `json:"lifetime_deposits"`
	FeeBps             int64     `json:"fee_bps" gorm:"default:0"`
	FeeRecipientID     uuid.UUID `json:"fee_recipient_id" gorm:"type:uuid;not null"`
}

// VaultPosition is a holder's reward-accounting state within one vault.
// RewardDebt snapshots the already-accounted reward at the last settlement;
// PendingRewards is settled-but-unclaimed reward.
type VaultPosition struct {
	BaseModel
	VaultID        uuid.UUID `json:"vault_id" gorm:"type:uuid;not null;uniqueIndex:idx_vault_holder"`
	HolderID       uuid.UUID `json:"holder_id" gorm:"type:uuid;not null;uniqueIndex:idx_vault_holder"`
	RewardDebt     BigInt    `json:"reward_debt"`
	PendingRewards BigInt    `json:"pending_rewards"`
}

// ShareLedger is the fungible ownership-share ledger for one asset, capped at
// MaxSupply and linked 1:1 to the asset's vault.
type ShareLedger struct {
	BaseModel
	AssetID     uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex"`
	VaultID     uuid.UUID `json:"vault_id" gorm:"type:uuid;not null;uniqueIndex"`
	TotalSupply BigInt    `json:"total_supply"`
	MaxSupply   BigInt    `json:"max_supply"`
}

type ShareBalance struct {
	BaseModel
	LedgerID uuid.UUID `json:"ledger_id" gorm:"type:uuid;not null;uniqueIndex:idx_ledger_holder"`
	HolderID uuid.UUID `json:"holder_id" gorm:"type:uuid;not null;uniqueIndex:idx_ledger_holder"`
	Balance  BigInt    `json:"balance"`
}

// VaultTransfer records an outbound fund movement. Rows are written only
// after all ledger state for the operation has been updated, so the external
// transfer always follows the internal bookkeeping.
type VaultTransfer struct {
	BaseModel
	VaultID     uuid.UUID         `json:"vault_id" gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID         `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Type        VaultTransferType `json:"type" gorm:"type:varchar(30);not null;index"`
	Amount      BigInt            `json:"amount"`
	Reference   string            `json:"reference,omitempty" gorm:"size:255"`
}

// RentPayment tracks a Stripe payment intent collecting one rent period.
type RentPayment struct {
	BaseModel
	AssetID         uuid.UUID         `json:"asset_id" gorm:"type:uuid;not null;index"`
	PayerID         uuid.UUID         `json:"payer_id" gorm:"type:uuid;not null;index"`
	Amount          BigInt            `json:"amount"`
	PaymentIntentID string            `json:"payment_intent_id" gorm:"size:255;uniqueIndex"`
	Status          RentPaymentStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	RecordedAt      *int64            `json:"recorded_at"` // unix seconds, set when applied to the schedule
}
