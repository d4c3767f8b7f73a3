package merchantd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAutoSignTransitions(t *testing.T) {
	cases := []struct {
		from, to AutoSignState
		ok       bool
	}{
		{StateNotConfigured, StateTermsAccepted, true},
		{StateTermsAccepted, StateLimitsSet, true},
		{StateLimitsSet, StateEnabled, true},
		{StateEnabled, StateLimitsSet, true},
		{StateNotConfigured, StateEnabled, false},
		{StateNotConfigured, StateLimitsSet, false},
		{StateTermsAccepted, StateEnabled, false},
		{StateEnabled, StateNotConfigured, false},
		{StateLimitsSet, StateTermsAccepted, false},
	}
	for _, tc := range cases {
		err := ValidateAutoSignTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			require.ErrorIs(t, err, ErrStateViolation, "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestAutoSignLimitsDefaults(t *testing.T) {
	limits := DefaultAutoSignLimits()
	require.Equal(t, float64(100), limits.MaxSingle)
	require.Equal(t, float64(1000), limits.DailyLimit)
	require.NoError(t, limits.Validate())
}

func TestAutoSignLimitsValidation(t *testing.T) {
	cases := []struct {
		name   string
		limits AutoSignLimits
		ok     bool
	}{
		{"minimums", AutoSignLimits{MaxSingle: 1, DailyLimit: 10}, true},
		{"maximums", AutoSignLimits{MaxSingle: 10000, DailyLimit: 50000}, true},
		{"single above daily", AutoSignLimits{MaxSingle: 5000, DailyLimit: 1000}, true},
		{"single too low", AutoSignLimits{MaxSingle: 0, DailyLimit: 100}, false},
		{"single too high", AutoSignLimits{MaxSingle: 10001, DailyLimit: 50000}, false},
		{"daily too low", AutoSignLimits{MaxSingle: 1, DailyLimit: 5}, false},
		{"daily too high", AutoSignLimits{MaxSingle: 100, DailyLimit: 50010}, false},
		{"daily off step", AutoSignLimits{MaxSingle: 100, DailyLimit: 1005}, false},
		{"daily fractional", AutoSignLimits{MaxSingle: 100, DailyLimit: 1000.5}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.limits.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrOutOfRange)
			}
		})
	}
}

func TestDerivedAutoSignState(t *testing.T) {
	record := defaultSettings()
	require.Equal(t, StateNotConfigured, record.AutoSignState())

	record.AutoSignTermsAccepted = true
	require.Equal(t, StateTermsAccepted, record.AutoSignState())

	record.AutoSignLimitsSet = true
	require.Equal(t, StateLimitsSet, record.AutoSignState())

	record.AutoSignEnabled = true
	require.Equal(t, StateEnabled, record.AutoSignState())

	record.AutoSignEnabled = false
	require.Equal(t, StateLimitsSet, record.AutoSignState())
}
