package merchantd

import (
	"fmt"
	"math"
)

// RateLevels is the number of referral tiers paid commission.
const RateLevels = 5

// RateTable holds the per-level commission percentages.
type RateTable [RateLevels]float64

// DefaultRates is the commission table applied to new stores.
var DefaultRates = RateTable{25, 5, 3, 2, 1}

const (
	rateMin        = 0
	rateMax        = 50
	rateStep       = 0.5
	rateSumWarnCap = 50
)

// RateError reports a single invalid commission level.
type RateError struct {
	Level int
	Value float64
}

func (e *RateError) Error() string {
	return fmt.Sprintf("level %d rate %v must be between %v and %v in steps of %v",
		e.Level, e.Value, float64(rateMin), float64(rateMax), rateStep)
}

func (e *RateError) Unwrap() error { return ErrInvalidRate }

// ValidateRates checks every level of the proposed table. Entries that fail
// are reported individually so callers can keep the previous value for each
// rejected level while accepting the rest.
func ValidateRates(proposed RateTable) []*RateError {
	var bad []*RateError
	for i, v := range proposed {
		if !validRate(v) {
			bad = append(bad, &RateError{Level: i + 1, Value: v})
		}
	}
	return bad
}

func validRate(v float64) bool {
	if v < rateMin || v > rateMax {
		return false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	doubled := v * 2
	return math.Abs(doubled-math.Round(doubled)) < 1e-9
}

// MergeRates applies the valid levels of proposed onto current, keeping the
// current value for each invalid level. It returns the merged table, the
// per-level errors, and whether the merged total crossed the soft warning cap.
func MergeRates(current, proposed RateTable) (RateTable, []*RateError, bool) {
	bad := ValidateRates(proposed)
	invalid := make(map[int]bool, len(bad))
	for _, e := range bad {
		invalid[e.Level] = true
	}
	merged := current
	for i := range proposed {
		if !invalid[i+1] {
			merged[i] = proposed[i]
		}
	}
	return merged, bad, merged.Sum() > rateSumWarnCap
}

// Sum returns the total commission percentage across all levels.
func (t RateTable) Sum() float64 {
	var total float64
	for _, v := range t {
		total += v
	}
	return total
}
