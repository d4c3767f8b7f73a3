package merchantd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRatesAcceptsDefaults(t *testing.T) {
	require.Empty(t, ValidateRates(DefaultRates))
}

func TestValidateRatesRejectsOutOfRange(t *testing.T) {
	bad := ValidateRates(RateTable{-1, 51, 10, 10, 10})
	require.Len(t, bad, 2)
	require.Equal(t, 1, bad[0].Level)
	require.Equal(t, 2, bad[1].Level)
	require.ErrorIs(t, bad[0], ErrInvalidRate)
}

func TestValidateRatesRejectsOffStep(t *testing.T) {
	bad := ValidateRates(RateTable{25.3, 5, 3, 2, 1})
	require.Len(t, bad, 1)
	require.Equal(t, 1, bad[0].Level)
}

func TestValidateRatesAcceptsHalfSteps(t *testing.T) {
	require.Empty(t, ValidateRates(RateTable{0, 0.5, 12.5, 49.5, 50}))
}

func TestMergeRatesKeepsPreviousForInvalidLevels(t *testing.T) {
	current := DefaultRates
	merged, bad, warn := MergeRates(current, RateTable{30, 99, 4, 2.25, 1})
	require.Len(t, bad, 2)
	require.Equal(t, RateTable{30, 5, 4, 2, 1}, merged)
	require.False(t, warn)
}

func TestMergeRatesSumWarning(t *testing.T) {
	merged, bad, warn := MergeRates(DefaultRates, RateTable{50, 10, 5, 3, 2})
	require.Empty(t, bad)
	require.True(t, warn)
	require.Equal(t, float64(70), merged.Sum())
}

func TestMergeRatesSumAtCapNoWarning(t *testing.T) {
	_, bad, warn := MergeRates(DefaultRates, RateTable{40, 5, 3, 1, 1})
	require.Empty(t, bad)
	require.False(t, warn)
}
