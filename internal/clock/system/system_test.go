package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	require.NotNil(t, clk)
	first := clk.Now()
	second := clk.Now()
	assert.False(t, second.Before(first), "expected %v >= %v", second, first)
}

func TestSleepBlocksForDuration(t *testing.T) {
	t.Parallel()

	clk := New()
	start := time.Now()
	clk.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleepIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	clk := New()
	start := time.Now()
	clk.Sleep(-time.Second)
	clk.Sleep(0)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
