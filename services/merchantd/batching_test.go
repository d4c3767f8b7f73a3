package merchantd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatchingPolicyValidation(t *testing.T) {
	require.NoError(t, BatchingPolicy{MinThreshold: 0, ScheduleDays: 0}.Validate())
	require.NoError(t, BatchingPolicy{MinThreshold: 25, ScheduleDays: 7}.Validate())
	require.ErrorIs(t, BatchingPolicy{MinThreshold: 15, ScheduleDays: 7}.Validate(), ErrOutOfRange)
	require.ErrorIs(t, BatchingPolicy{MinThreshold: 25, ScheduleDays: 2}.Validate(), ErrOutOfRange)
}

func TestBatchingDueRequiresBothGates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	policy := BatchingPolicy{MinThreshold: 50, ScheduleDays: 7}

	// Threshold met but schedule not elapsed.
	require.False(t, policy.Due(100, now.Add(-3*24*time.Hour), now))
	// Schedule elapsed but balance short.
	require.False(t, policy.Due(10, now.Add(-10*24*time.Hour), now))
	// Both gates pass.
	require.True(t, policy.Due(100, now.Add(-8*24*time.Hour), now))
}

func TestBatchingDueZeroDisablesGate(t *testing.T) {
	now := time.Now()
	require.True(t, BatchingPolicy{MinThreshold: 0, ScheduleDays: 0}.Due(0.01, now, now))
	require.True(t, BatchingPolicy{MinThreshold: 5, ScheduleDays: 0}.Due(5, now, now))
	require.True(t, BatchingPolicy{MinThreshold: 0, ScheduleDays: 7}.Due(0, time.Time{}, now))
}

func TestValidateCookieDays(t *testing.T) {
	require.NoError(t, ValidateCookieDays(1))
	require.NoError(t, ValidateCookieDays(30))
	require.NoError(t, ValidateCookieDays(365))
	require.ErrorIs(t, ValidateCookieDays(0), ErrOutOfRange)
	require.ErrorIs(t, ValidateCookieDays(366), ErrOutOfRange)
}
