// internal/models/asset.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset is the registry's per-asset lifecycle record. The linked component
// references (schedule, vault, share ledger) are single-assignment: once set
// by LinkComponents they never change. Schedule-related timestamps are unix
// seconds so compressed demo timelines (small time units) stay exact.
type Asset struct {
	BaseModel
	AssetType    string    `json:"asset_type" gorm:"size:100;not null;index"`
	OriginatorID uuid.UUID `json:"originator_id" gorm:"type:uuid;not null;index"`

	ScheduleID    *uuid.UUID `json:"schedule_id" gorm:"type:uuid"`
	VaultID       *uuid.UUID `json:"vault_id" gorm:"type:uuid"`
	ShareLedgerID *uuid.UUID `json:"share_ledger_id" gorm:"type:uuid"`

	KYCVerified bool `json:"kyc_verified" gorm:"default:false"`
	Paused      bool `json:"paused" gorm:"default:false"`

	Valuation        BigInt `json:"valuation"`
	AccumulatedYield BigInt `json:"accumulated_yield"`

	LastPaymentAt   int64       `json:"last_payment_at"`
	MissedPayments  int64       `json:"missed_payments" gorm:"default:0"`
	DaysInDefault   int64       `json:"days_in_default" gorm:"default:0"`
	NextDueDate     int64       `json:"next_due_date"`
	ExpectedPayment BigInt      `json:"expected_payment"`
	MaturityDate    int64       `json:"maturity_date"`
	LastKnownHealth LeaseHealth `json:"last_known_health" gorm:"type:varchar(20);default:'performing'"`

	Status            AssetStatus `json:"status" gorm:"type:varchar(20);default:'registered';index"`
	StatusBeforePause AssetStatus `json:"status_before_pause,omitempty" gorm:"type:varchar(20)"`

	RegisteredAt time.Time  `json:"registered_at"`
	ActivatedAt  *time.Time `json:"activated_at"`
	MetadataHash string     `json:"metadata_hash" gorm:"size:66"`

	// Relationships
	Originator Identity `json:"originator,omitempty" gorm:"foreignKey:OriginatorID"`
}

// Linked reports whether all three component references have been assigned.
func (a *Asset) Linked() bool {
	return a.ScheduleID != nil && a.VaultID != nil && a.ShareLedgerID != nil
}

// Notification is an operational event row emitted on actionable lifecycle
// transitions (default, expiry, liquidation) for admin tooling to poll.
type Notification struct {
	BaseModel
	Type     string               `json:"type" gorm:"type:varchar(50);not null;index"`
	Title    string               `json:"title" gorm:"size:255;not null"`
	Message  string               `json:"message" gorm:"type:text;not null"`
	Priority NotificationPriority `json:"priority" gorm:"type:varchar(20);default:'medium';index"`
	AssetID  *uuid.UUID           `json:"asset_id" gorm:"type:uuid;index"`
	ReadAt   *time.Time           `json:"read_at"`
}
