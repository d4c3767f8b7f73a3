package merchantd

import "fmt"

// AutoSignState tracks progress through the auto-sign enablement workflow.
type AutoSignState string

const (
	StateNotConfigured AutoSignState = "NOT_CONFIGURED"
	StateTermsAccepted AutoSignState = "TERMS_ACCEPTED"
	StateLimitsSet     AutoSignState = "LIMITS_SET"
	StateEnabled       AutoSignState = "ENABLED"
)

// autoSignTransitions lists the permitted state changes. Editing limits while
// enabled stays in ENABLED, so ENABLED->LIMITS_SET only happens via revoke.
var autoSignTransitions = map[AutoSignState][]AutoSignState{
	StateNotConfigured: {StateTermsAccepted},
	StateTermsAccepted: {StateLimitsSet},
	StateLimitsSet:     {StateEnabled},
	StateEnabled:       {StateLimitsSet},
}

// ValidateAutoSignTransition checks whether moving from one policy state to
// another is permitted.
func ValidateAutoSignTransition(from, to AutoSignState) error {
	for _, allowed := range autoSignTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrStateViolation, from, to)
}

// Auto-sign limit bounds. Per-transaction limits are whole-unit granular,
// daily limits move in steps of ten.
const (
	autoSignSingleMin     = 1
	autoSignSingleMax     = 10000
	autoSignSingleDefault = 100
	autoSignDailyMin      = 10
	autoSignDailyMax      = 50000
	autoSignDailyStep     = 10
	autoSignDailyDefault  = 1000
)

// AutoSignLimits are the spend ceilings the merchant authorises for
// automatic signing.
type AutoSignLimits struct {
	MaxSingle  float64 `json:"max_single"`
	DailyLimit float64 `json:"daily_limit"`
}

// DefaultAutoSignLimits returns the limits preloaded into the consent form.
func DefaultAutoSignLimits() AutoSignLimits {
	return AutoSignLimits{MaxSingle: autoSignSingleDefault, DailyLimit: autoSignDailyDefault}
}

// Validate checks both ceilings against their ranges and the daily step.
func (l AutoSignLimits) Validate() error {
	if l.MaxSingle < autoSignSingleMin || l.MaxSingle > autoSignSingleMax {
		return fmt.Errorf("%w: max single payment %v must be between %d and %d",
			ErrOutOfRange, l.MaxSingle, autoSignSingleMin, autoSignSingleMax)
	}
	if l.DailyLimit < autoSignDailyMin || l.DailyLimit > autoSignDailyMax {
		return fmt.Errorf("%w: daily limit %v must be between %d and %d",
			ErrOutOfRange, l.DailyLimit, autoSignDailyMin, autoSignDailyMax)
	}
	if remainder := int64(l.DailyLimit) % autoSignDailyStep; remainder != 0 || l.DailyLimit != float64(int64(l.DailyLimit)) {
		return fmt.Errorf("%w: daily limit %v must be a multiple of %d",
			ErrOutOfRange, l.DailyLimit, autoSignDailyStep)
	}
	return nil
}
