// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate fills the uuid primary key. IDs are assigned here rather than
// by a column default so the models migrate on dialects without
// gen_random_uuid (the sqlite test databases).
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}

	return json.Unmarshal(bytes, j)
}

// Enums

// AssetStatus is the lifecycle state of a registered asset. Transitions are
// driven exclusively by the registry service state machine.
type AssetStatus string

const (
	AssetStatusRegistered  AssetStatus = "registered"
	AssetStatusLinked      AssetStatus = "linked"
	AssetStatusActive      AssetStatus = "active"
	AssetStatusUnderReview AssetStatus = "under_review"
	AssetStatusDefaulted   AssetStatus = "defaulted"
	AssetStatusLiquidating AssetStatus = "liquidating"
	AssetStatusLiquidated  AssetStatus = "liquidated"
	AssetStatusExpired     AssetStatus = "expired"
	AssetStatusPaused      AssetStatus = "paused"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s AssetStatus) Terminal() bool {
	return s == AssetStatusLiquidated || s == AssetStatusExpired
}

// LeaseHealth is the payment health computed by the cashflow engine.
type LeaseHealth string

const (
	LeaseHealthPerforming  LeaseHealth = "performing"
	LeaseHealthGracePeriod LeaseHealth = "grace_period"
	LeaseHealthLate        LeaseHealth = "late"
	LeaseHealthDefaulted   LeaseHealth = "defaulted"
	LeaseHealthCompleted   LeaseHealth = "completed"
)

// Bad reports whether the health indicates a missed or overdue payment.
func (h LeaseHealth) Bad() bool {
	return h == LeaseHealthLate || h == LeaseHealthDefaulted
}

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

type IdentityStatus string

const (
	IdentityStatusActive    IdentityStatus = "active"
	IdentityStatusSuspended IdentityStatus = "suspended"
)

// Roles carried on an identity. A role grants a set of capabilities, see the
// authorization service.
const (
	RoleAdmin      = "admin"
	RoleOriginator = "originator"
	RoleServicer   = "servicer"
	RoleManager    = "manager"
	RoleInvestor   = "investor"
)

// VaultTransferType classifies outbound fund movements from a vault.
type VaultTransferType string

const (
	VaultTransferYieldClaim        VaultTransferType = "yield_claim"
	VaultTransferCapitalDeployment VaultTransferType = "capital_deployment"
	VaultTransferFeeWithdrawal     VaultTransferType = "fee_withdrawal"
)

type RentPaymentStatus string

const (
	RentPaymentStatusPending   RentPaymentStatus = "pending"
	RentPaymentStatusSucceeded RentPaymentStatus = "succeeded"
	RentPaymentStatusFailed    RentPaymentStatus = "failed"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityHigh   NotificationPriority = "high"
)
