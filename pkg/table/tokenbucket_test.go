package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testFreq = 1_000_000_000

// TestShape_CapsAtCapacity exercises invariant I1: NTokens never exceeds
// cpuFreq*BurstBits, even after a long idle period refills well past it.
func TestShape_CapsAtCapacity(t *testing.T) {
	e := &MatchEntry{RateBps: 1_000_000, BurstBits: 1000, LastTSC: 0}
	capacity := testFreq * e.BurstBits

	e.Shape(1_000_000_000_000, testFreq, 100)

	assert.LessOrEqual(t, e.NTokens, capacity)
}

// TestShape_DropsWhenStarved: a rule with no accumulated tokens and a
// packet larger than its burst must be dropped, not forwarded.
func TestShape_DropsWhenStarved(t *testing.T) {
	e := &MatchEntry{RateBps: 1, BurstBits: 1, LastTSC: 0}

	allowed := e.Shape(1, testFreq, 1500)

	assert.False(t, allowed)
}

// TestShape_PassesWithEnoughTokens checks the debit happens and leaves the
// bucket non-negative.
func TestShape_PassesWithEnoughTokens(t *testing.T) {
	e := &MatchEntry{RateBps: 0, BurstBits: 10_000_000, NTokens: testFreq * 10_000_000, LastTSC: 100}

	allowed := e.Shape(100, testFreq, 64)

	assert.True(t, allowed)
	assert.LessOrEqual(t, e.NTokens, testFreq*e.BurstBits)
}

// TestShape_OverflowSaturatesInsteadOfWrapping covers B3: an enormous
// rate_bps times a large delta would overflow uint64 multiplication; Shape
// must saturate at capacity rather than silently wrap to a small value.
// The packet fits in the full bucket, so its cost is then debited.
func TestShape_OverflowSaturatesInsteadOfWrapping(t *testing.T) {
	e := &MatchEntry{RateBps: 1 << 63, BurstBits: 1000, LastTSC: 0}
	capacity := testFreq * e.BurstBits

	e.Shape(1<<20, testFreq, 64)

	assert.Equal(t, capacity-shapingCost(testFreq, 64, 0), e.NTokens)
}

func TestShape_MonotonicLastTSC(t *testing.T) {
	e := &MatchEntry{RateBps: 10, BurstBits: 10, LastTSC: 5}

	e.Shape(9, testFreq, 64)

	assert.Equal(t, uint64(9), e.LastTSC)
}

func TestLoadFromControl_ScalesTokensAndStampsTSC(t *testing.T) {
	e := &MatchEntry{NTokens: 5, LastTSC: 1}

	e.LoadFromControl(123, testFreq)

	assert.Equal(t, uint64(5*testFreq), e.NTokens)
	assert.Equal(t, uint64(123), e.LastTSC)
}
