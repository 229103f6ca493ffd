// internal/services/cashflow_service.go
package services

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/schedule"
)

// CashflowService is the stateful engine around the pure schedule math. It
// records per-period payments and persists health evaluations. Mutating
// methods take the caller's transaction handle so registry-level operations
// stay atomic across components.
type CashflowService struct {
	db *gorm.DB
}

// ScheduleInfo is the read-only schedule triple shared with the registry and
// the vault so neither duplicates period math.
type ScheduleInfo struct {
	ScheduleID      uuid.UUID     `json:"schedule_id"`
	NextDueDate     int64         `json:"next_due_date"`
	ExpectedPayment models.BigInt `json:"expected_payment"`
	MaturityDate    int64         `json:"maturity_date"`
}

func NewCashflowService(db *gorm.DB) *CashflowService {
	return &CashflowService{db: db}
}

// CreateSchedule validates the lease terms and creates the schedule with its
// engine state inside tx. Invalid terms reject the whole setup.
func (s *CashflowService) CreateSchedule(tx *gorm.DB, assetID uuid.UUID, terms schedule.Terms, now int64) (*models.LeaseTerms, error) {
	if err := terms.Validate(now); err != nil {
		return nil, err
	}

	lease := &models.LeaseTerms{
		AssetID:          assetID,
		RentAmount:       models.FromInt(terms.RentAmount),
		PaymentInterval:  terms.PaymentInterval,
		FirstDueDate:     terms.FirstDueDate,
		GracePeriodUnits: terms.GracePeriodUnits,
		EndDate:          terms.EndDate,
		TimeUnit:         terms.TimeUnit,
	}
	if err := tx.Create(lease).Error; err != nil {
		return nil, apperrors.Internal("failed to create lease terms", err)
	}

	state := &models.CashflowState{
		ScheduleID:       lease.ID,
		Health:           models.LeaseHealthPerforming,
		LastPaidPeriod:   -1,
		LastMissedPeriod: -1,
	}
	if err := tx.Create(state).Error; err != nil {
		return nil, apperrors.Internal("failed to create cashflow state", err)
	}

	return lease, nil
}

// Preview computes the health at ts without mutating anything.
func (s *CashflowService) Preview(scheduleID uuid.UUID, ts int64) (schedule.Health, error) {
	return s.preview(s.db, scheduleID, ts)
}

func (s *CashflowService) preview(db *gorm.DB, scheduleID uuid.UUID, ts int64) (schedule.Health, error) {
	lease, err := s.loadTerms(db, scheduleID)
	if err != nil {
		return schedule.Health{}, err
	}
	isPaid, err := s.paidLookup(db, scheduleID)
	if err != nil {
		return schedule.Health{}, err
	}
	return schedule.PreviewHealth(s.terms(lease), ts, isPaid), nil
}

// Evaluate previews the health at ts, persists it, and advances the missed
// counters. Counting is watermarked per period index: evaluating repeatedly
// at times mapping to the same unpaid period increments the counter once.
func (s *CashflowService) Evaluate(tx *gorm.DB, scheduleID uuid.UUID, ts int64) (schedule.Health, *models.CashflowState, error) {
	lease, err := s.loadTerms(tx, scheduleID)
	if err != nil {
		return schedule.Health{}, nil, err
	}
	state, err := s.loadState(tx, scheduleID)
	if err != nil {
		return schedule.Health{}, nil, err
	}
	isPaid, err := s.paidLookup(tx, scheduleID)
	if err != nil {
		return schedule.Health{}, nil, err
	}

	terms := s.terms(lease)
	health := schedule.PreviewHealth(terms, ts, isPaid)

	newlyMissed, watermark := schedule.MissedSince(terms, ts, state.LastMissedPeriod, isPaid)
	state.MissedPeriods += newlyMissed
	state.LastMissedPeriod = watermark
	state.Health = health.Health

	if err := tx.Save(state).Error; err != nil {
		return schedule.Health{}, nil, apperrors.Internal("failed to persist cashflow state", err)
	}
	return health, state, nil
}

// RecordPayment marks the period containing ts as paid. A payment before the
// first due date applies to period zero.
func (s *CashflowService) RecordPayment(tx *gorm.DB, scheduleID uuid.UUID, amount *big.Int, ts int64) (*models.CashflowState, error) {
	lease, err := s.loadTerms(tx, scheduleID)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(tx, scheduleID)
	if err != nil {
		return nil, err
	}

	if state.Health == models.LeaseHealthDefaulted {
		return nil, apperrors.State("lease is in default, payments are no longer accepted")
	}
	if ts >= lease.EndDate {
		return nil, apperrors.State("lease has ended")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.Validation("payment amount must be positive")
	}
	if amount.Cmp(lease.RentAmount.Int()) < 0 {
		return nil, apperrors.Validation("payment amount %s is below the rent amount %s", amount, lease.RentAmount.String())
	}

	terms := s.terms(lease)
	idx := terms.PeriodIndex(ts)
	if idx < 0 {
		idx = 0
	}

	var existing models.PaymentPeriod
	err = tx.First(&existing, "schedule_id = ? AND period_index = ?", scheduleID, idx).Error
	if err == nil {
		return nil, apperrors.AlreadyProcessed("period %d is already paid", idx)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("failed to look up payment period", err)
	}

	period := &models.PaymentPeriod{
		ScheduleID:  scheduleID,
		PeriodIndex: idx,
		Amount:      models.FromInt(amount),
		PaidAt:      ts,
	}
	if err := tx.Create(period).Error; err != nil {
		return nil, apperrors.Internal("failed to record payment period", err)
	}

	state.TotalReceived = state.TotalReceived.Add(models.FromInt(amount))
	if idx > state.LastPaidPeriod {
		state.LastPaidPeriod = idx
	}

	state.Health = models.LeaseHealthPerforming
	if terms.DueDate(idx+1) >= lease.EndDate {
		state.Health = models.LeaseHealthCompleted
	}

	if err := tx.Save(state).Error; err != nil {
		return nil, apperrors.Internal("failed to persist cashflow state", err)
	}
	return state, nil
}

// GetSchedule returns the schedule triple: the next unpaid due date, the
// expected periodic payment, and the maturity date.
func (s *CashflowService) GetSchedule(db *gorm.DB, scheduleID uuid.UUID) (ScheduleInfo, error) {
	lease, err := s.loadTerms(db, scheduleID)
	if err != nil {
		return ScheduleInfo{}, err
	}
	state, err := s.loadState(db, scheduleID)
	if err != nil {
		return ScheduleInfo{}, err
	}

	return ScheduleInfo{
		ScheduleID:      scheduleID,
		NextDueDate:     s.terms(lease).DueDate(state.LastPaidPeriod + 1),
		ExpectedPayment: lease.RentAmount,
		MaturityDate:    lease.EndDate,
	}, nil
}

// State returns the engine's persisted state for a schedule.
func (s *CashflowService) State(db *gorm.DB, scheduleID uuid.UUID) (*models.CashflowState, error) {
	return s.loadState(db, scheduleID)
}

func (s *CashflowService) loadTerms(db *gorm.DB, scheduleID uuid.UUID) (*models.LeaseTerms, error) {
	var lease models.LeaseTerms
	if err := db.First(&lease, "id = ?", scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("schedule %s not found", scheduleID)
		}
		return nil, apperrors.Internal("failed to load lease terms", err)
	}
	return &lease, nil
}

func (s *CashflowService) loadState(db *gorm.DB, scheduleID uuid.UUID) (*models.CashflowState, error) {
	var state models.CashflowState
	if err := db.First(&state, "schedule_id = ?", scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("cashflow state for schedule %s not found", scheduleID)
		}
		return nil, apperrors.Internal("failed to load cashflow state", err)
	}
	return &state, nil
}

func (s *CashflowService) paidLookup(db *gorm.DB, scheduleID uuid.UUID) (schedule.IsPaidFunc, error) {
	var periods []models.PaymentPeriod
	if err := db.Where("schedule_id = ?", scheduleID).Find(&periods).Error; err != nil {
		return nil, apperrors.Internal("failed to load payment periods", err)
	}
	paid := make(map[int64]bool, len(periods))
	for _, p := range periods {
		paid[p.PeriodIndex] = true
	}
	return func(idx int64) bool { return paid[idx] }, nil
}

func (s *CashflowService) terms(lease *models.LeaseTerms) schedule.Terms {
	return schedule.Terms{
		RentAmount:       lease.RentAmount.Int(),
		PaymentInterval:  lease.PaymentInterval,
		FirstDueDate:     lease.FirstDueDate,
		GracePeriodUnits: lease.GracePeriodUnits,
		EndDate:          lease.EndDate,
		TimeUnit:         lease.TimeUnit,
	}
}
