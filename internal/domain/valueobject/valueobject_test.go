package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimStatus_TransitionTable(t *testing.T) {
	all := []ClaimStatus{ClaimStatusPending, ClaimStatusUnderReview, ClaimStatusApproved, ClaimStatusRejected}
	allowed := map[ClaimStatus]map[ClaimStatus]bool{
		ClaimStatusPending:     {ClaimStatusUnderReview: true, ClaimStatusApproved: true, ClaimStatusRejected: true},
		ClaimStatusUnderReview: {ClaimStatusApproved: true, ClaimStatusRejected: true},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestClaimStatus_NothingLeadsBackToPending(t *testing.T) {
	for _, from := range []ClaimStatus{ClaimStatusPending, ClaimStatusUnderReview, ClaimStatusApproved, ClaimStatusRejected} {
		assert.False(t, from.CanTransitionTo(ClaimStatusPending))
		assert.False(t, from.CanTransitionTo(from))
	}
}

func TestClaimStatus_AllowedTransitionsIsACopy(t *testing.T) {
	got := ClaimStatusPending.AllowedTransitions()
	require.Len(t, got, 3)
	got[0] = ClaimStatusRejected
	assert.Equal(t, ClaimStatusUnderReview, ClaimStatusPending.AllowedTransitions()[0])
}

func TestNewClaimStatus(t *testing.T) {
	s, err := NewClaimStatus("under-review")
	require.NoError(t, err)
	assert.Equal(t, ClaimStatusUnderReview, s)

	_, err = NewClaimStatus("closed")
	assert.Error(t, err)
}

func TestSeverity_Ordering(t *testing.T) {
	assert.Equal(t, SeveritySevere, SeverityMinor.Max(SeveritySevere))
	assert.Equal(t, SeveritySevere, SeveritySevere.Max(SeverityModerate))
	assert.Equal(t, SeverityModerate, SeverityModerate.Max(SeverityMinor))
	assert.Equal(t, SeverityMinor, SeverityMinor.Max(Severity("unknown")))
}

func TestNewSeverity_NormalizesCase(t *testing.T) {
	s, err := NewSeverity(" Severe ")
	require.NoError(t, err)
	assert.Equal(t, SeveritySevere, s)

	_, err = NewSeverity("catastrophic")
	assert.Error(t, err)
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(2500, "")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency)

	_, err = NewMoney(-1, "USD")
	assert.Error(t, err)
}
