package merchantd

import (
	"fmt"
	"time"
)

// Payout batching choices are enumerated rather than free-form so the admin
// UI and the remote platform always agree on the supported values.
var (
	// PayoutThresholds are the selectable minimum balances, in RLUSD.
	// Zero disables the threshold gate.
	PayoutThresholds = []float64{0, 5, 10, 25, 50, 100}
	// PayoutSchedules are the selectable day intervals between payout runs.
	// Zero disables the schedule gate.
	PayoutSchedules = []int{0, 1, 3, 7, 14, 30}
)

const (
	cookieDaysMin     = 1
	cookieDaysMax     = 365
	cookieDaysDefault = 30
)

// BatchingPolicy gates when accrued commissions become payable.
type BatchingPolicy struct {
	// MinThreshold is the minimum accrued balance before payout, in RLUSD.
	MinThreshold float64 `json:"min_threshold"`
	// ScheduleDays is the minimum interval between payout runs.
	ScheduleDays int `json:"schedule_days"`
}

// Validate checks both knobs against their enumerations.
func (p BatchingPolicy) Validate() error {
	if !containsFloat(PayoutThresholds, p.MinThreshold) {
		return fmt.Errorf("%w: payout threshold %v is not a supported value", ErrOutOfRange, p.MinThreshold)
	}
	if !containsInt(PayoutSchedules, p.ScheduleDays) {
		return fmt.Errorf("%w: payout schedule %d days is not a supported value", ErrOutOfRange, p.ScheduleDays)
	}
	return nil
}

// Due reports whether a payout should run. Both gates must pass: the accrued
// balance must meet the threshold and enough days must have elapsed since the
// last run. A zero value disables the corresponding gate.
func (p BatchingPolicy) Due(accrued float64, lastRun time.Time, now time.Time) bool {
	if p.MinThreshold > 0 && accrued < p.MinThreshold {
		return false
	}
	if p.ScheduleDays > 0 {
		if lastRun.IsZero() {
			return true
		}
		elapsed := now.Sub(lastRun)
		if elapsed < time.Duration(p.ScheduleDays)*24*time.Hour {
			return false
		}
	}
	return true
}

// ValidateCookieDays checks the referral attribution window.
func ValidateCookieDays(days int) error {
	if days < cookieDaysMin || days > cookieDaysMax {
		return fmt.Errorf("%w: cookie window %d days must be between %d and %d",
			ErrOutOfRange, days, cookieDaysMin, cookieDaysMax)
	}
	return nil
}

func containsFloat(values []float64, v float64) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
