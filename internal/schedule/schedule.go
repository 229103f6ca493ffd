// internal/schedule/schedule.go

// Package schedule implements the pure lease scheduling and health math.
// It has no storage dependencies; the cashflow service supplies paid-period
// lookups and persists the results.
package schedule

import (
	"math/big"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

// MinIntervalUnits is the minimum payment interval, in time units.
const MinIntervalUnits = 1

// MaxFirstDueLagUnits bounds how far in the past the first due date may lie
// at setup time, in time units.
const MaxFirstDueLagUnits = 30

// Terms are the immutable lease parameters. All timestamps are unix seconds;
// TimeUnit is the number of seconds in one schedule "day", which lets demo
// deployments compress timelines.
type Terms struct {
	RentAmount       *big.Int
	PaymentInterval  int64
	FirstDueDate     int64
	GracePeriodUnits int64
	EndDate          int64
	TimeUnit         int64
}

// Health is the result of a preview: a lifecycle status hint for the
// registry, the lease health, whole time units past the current due date,
// and the period index the timestamp falls into (negative before the first
// due date).
type Health struct {
	Status       models.AssetStatus
	Health       models.LeaseHealth
	UnitsPastDue int64
	PeriodIndex  int64
}

// IsPaidFunc reports whether the period at the given index has been paid.
type IsPaidFunc func(periodIndex int64) bool

// Validate rejects invalid terms atomically at setup time.
func (t Terms) Validate(now int64) error {
	if t.TimeUnit <= 0 {
		return apperrors.Validation("time unit must be positive")
	}
	if t.RentAmount == nil || t.RentAmount.Sign() <= 0 {
		return apperrors.Validation("rent amount must be positive")
	}
	if t.PaymentInterval < MinIntervalUnits*t.TimeUnit {
		return apperrors.Validation("payment interval must be at least %d time unit(s)", MinIntervalUnits)
	}
	if t.GracePeriodUnits < 0 {
		return apperrors.Validation("grace period cannot be negative")
	}
	if t.EndDate <= t.FirstDueDate {
		return apperrors.Validation("lease end must be after the first due date")
	}
	if t.FirstDueDate < now-MaxFirstDueLagUnits*t.TimeUnit {
		return apperrors.Validation("first due date is too far in the past")
	}
	return nil
}

// PeriodIndex returns the payment period the timestamp falls into. Negative
// means the timestamp precedes the first due date.
func (t Terms) PeriodIndex(ts int64) int64 {
	if ts < t.FirstDueDate {
		return -1
	}
	return (ts - t.FirstDueDate) / t.PaymentInterval
}

// DueDate returns the due date of the period at the given index.
func (t Terms) DueDate(periodIndex int64) int64 {
	return t.FirstDueDate + periodIndex*t.PaymentInterval
}

// LastPeriodIndex is the index of the final period before the lease end.
func (t Terms) LastPeriodIndex() int64 {
	return t.PeriodIndex(t.EndDate - 1)
}

// graceWindow is the grace period in seconds.
func (t Terms) graceWindow() int64 {
	return t.GracePeriodUnits * t.TimeUnit
}

// missed reports whether the period's own due date is more than the grace
// window past and the period is unpaid, as seen at ts.
func (t Terms) missed(periodIndex, ts int64, isPaid IsPaidFunc) bool {
	return !isPaid(periodIndex) && ts-t.DueDate(periodIndex) > t.graceWindow()
}

// PreviewHealth computes the lease health at ts without mutating anything.
//
// At or past the lease end the lease is COMPLETED regardless of payment
// state. A paid current period is PERFORMING. An unpaid one is GRACE_PERIOD
// until the grace window elapses, then LATE, and DEFAULTED once two periods
// have independently exceeded their grace windows unpaid.
func PreviewHealth(t Terms, ts int64, isPaid IsPaidFunc) Health {
	if ts >= t.EndDate {
		return Health{
			Status:      models.AssetStatusExpired,
			Health:      models.LeaseHealthCompleted,
			PeriodIndex: t.LastPeriodIndex(),
		}
	}

	idx := t.PeriodIndex(ts)
	if idx < 0 || isPaid(idx) {
		return Health{
			Status:      models.AssetStatusActive,
			Health:      models.LeaseHealthPerforming,
			PeriodIndex: idx,
		}
	}

	unitsPastDue := (ts - t.DueDate(idx)) / t.TimeUnit
	if unitsPastDue < t.GracePeriodUnits {
		return Health{
			Status:       models.AssetStatusActive,
			Health:       models.LeaseHealthGracePeriod,
			UnitsPastDue: unitsPastDue,
			PeriodIndex:  idx,
		}
	}

	var missed int64
	for j := int64(0); j <= idx; j++ {
		if t.missed(j, ts, isPaid) {
			missed++
		}
	}

	health := models.LeaseHealthLate
	status := models.AssetStatusActive
	if missed >= 2 {
		health = models.LeaseHealthDefaulted
		status = models.AssetStatusDefaulted
	}
	return Health{
		Status:       status,
		Health:       health,
		UnitsPastDue: unitsPastDue,
		PeriodIndex:  idx,
	}
}

// MissedSince counts periods above the watermark that have newly exceeded
// their grace window unpaid as of ts, and returns the advanced watermark.
// Because only indexes above the watermark are considered, repeated
// evaluation at times mapping to the same period never double-counts.
func MissedSince(t Terms, ts, watermark int64, isPaid IsPaidFunc) (newlyMissed, newWatermark int64) {
	idx := t.PeriodIndex(ts)
	if ts >= t.EndDate {
		idx = t.LastPeriodIndex()
	}
	newWatermark = watermark
	for j := watermark + 1; j <= idx; j++ {
		if t.missed(j, ts, isPaid) {
			newlyMissed++
			newWatermark = j
		}
	}
	return newlyMissed, newWatermark
}
