package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAnalyzer_Deterministic(t *testing.T) {
	m := NewMockAnalyzer()
	ctx := context.Background()

	first, err := m.Analyze(ctx, "http://localhost/media/claims/2026/03/a.jpg")
	require.NoError(t, err)
	second, err := m.Analyze(ctx, "http://localhost/media/claims/2026/03/a.jpg")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Severity.IsValid())
	assert.GreaterOrEqual(t, first.Confidence, 0.75)
	assert.LessOrEqual(t, first.Confidence, 0.95)
	assert.NotEmpty(t, first.DamageTypes)
}

func TestMockAnalyzer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockAnalyzer().Analyze(ctx, "ref")
	assert.ErrorIs(t, err, context.Canceled)
}
