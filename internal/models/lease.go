// internal/models/lease.go
package models

import (
	"github.com/google/uuid"
)

// LeaseTerms are the immutable terms of one lease schedule. Validated once at
// setup (see schedule.Validate); never updated afterwards.
type LeaseTerms struct {
	BaseModel
	AssetID          uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex"`
	RentAmount       BigInt    `json:"rent_amount"`
	PaymentInterval  int64     `json:"payment_interval"`   // seconds between due dates
	FirstDueDate     int64     `json:"first_due_date"`     // unix seconds
	GracePeriodUnits int64     `json:"grace_period_units"` // in time units
	EndDate          int64     `json:"end_date"`           // unix seconds
	TimeUnit         int64     `json:"time_unit"`          // seconds per "day"
}

// CashflowState is the engine's mutable per-schedule state, 1:1 with
// LeaseTerms. LastMissedPeriod is the idempotence watermark: a period index
// at or below it has already been counted missed and is never recounted.
type CashflowState struct {
	BaseModel
	ScheduleID       uuid.UUID   `json:"schedule_id" gorm:"type:uuid;not null;uniqueIndex"`
	Health           LeaseHealth `json:"health" gorm:"type:varchar(20);default:'performing'"`
	TotalReceived    BigInt      `json:"total_received"`
	LastPaidPeriod   int64       `json:"last_paid_period" gorm:"default:-1"`
	MissedPeriods    int64       `json:"missed_periods" gorm:"default:0"`
	LastMissedPeriod int64       `json:"last_missed_period" gorm:"default:-1"`
}

// PaymentPeriod is one paid period, keyed by index. Rows are append-only:
// recording a payment for an existing index is rejected, rows are never
// deleted.
type PaymentPeriod struct {
	BaseModel
	ScheduleID  uuid.UUID `json:"schedule_id" gorm:"type:uuid;not null;uniqueIndex:idx_schedule_period"`
	PeriodIndex int64     `json:"period_index" gorm:"not null;uniqueIndex:idx_schedule_period"`
	Amount      BigInt    `json:"amount"`
	PaidAt      int64     `json:"paid_at"` // unix seconds
}
