package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		SoftDrawdownPct: 0.05,
		MaxDrawdownPct:  0.06,
		MaxExecErrors:   3,
	}
}

func TestObserveStaysNormalBelowSoftThreshold(t *testing.T) {
	b := NewBreaker(testConfig(), nil)

	b.Observe(day1, 10000)
	mode := b.Observe(day1.Add(time.Hour), 9501) // dd 4.99%
	assert.Equal(t, Normal, mode)
}

func TestObserveWarningAtSoftThreshold(t *testing.T) {
	b := NewBreaker(testConfig(), nil)

	b.Observe(day1, 10000)
	mode := b.Observe(day1.Add(time.Hour), 9490) // dd 5.1%
	assert.Equal(t, Warning, mode)

	// Warning does not clear when equity recovers intra-day.
	mode = b.Observe(day1.Add(2*time.Hour), 9900)
	assert.Equal(t, Warning, mode)
}

func TestObserveHaltedAtMaxThreshold(t *testing.T) {
	b := NewBreaker(testConfig(), nil)

	b.Observe(day1, 10000)
	b.Observe(day1.Add(time.Hour), 9490)           // warning
	mode := b.Observe(day1.Add(2*time.Hour), 9390) // dd 6.1%
	assert.Equal(t, Halted, mode)
	assert.Equal(t, "max daily drawdown exceeded", b.Reason())
	assert.Equal(t, day1.Add(2*time.Hour), b.HaltedSince())
}

func TestObserveCrashThroughBothThresholdsInOneBar(t *testing.T) {
	b := NewBreaker(testConfig(), nil)

	b.Observe(day1, 10000)
	mode := b.Observe(day1.Add(time.Hour), 9000) // dd 10%
	assert.Equal(t, Halted, mode)
}

func TestDailyResetClearsWarningAndHalt(t *testing.T) {
	b := NewBreaker(testConfig(), nil) // ResumeDaily by default

	b.Observe(day1, 10000)
	b.Observe(day1.Add(time.Hour), 9000)
	require.Equal(t, Halted, b.Mode())

	day2 := day1.Add(24 * time.Hour)
	mode := b.Observe(day2, 9000)
	assert.Equal(t, Normal, mode)
	assert.InDelta(t, 9000, b.DayStartEquity(), 1e-9)
}

func TestManualResumePolicyKeepsHaltAcrossDays(t *testing.T) {
	cfg := testConfig()
	cfg.ResumePolicy = ResumeManual
	b := NewBreaker(cfg, nil)

	b.Observe(day1, 10000)
	b.Observe(day1.Add(time.Hour), 9000)
	require.Equal(t, Halted, b.Mode())

	day2 := day1.Add(24 * time.Hour)
	assert.Equal(t, Halted, b.Observe(day2, 9000))

	require.NoError(t, b.Resume(day2.Add(time.Hour)))
	assert.Equal(t, Normal, b.Mode())
}

func TestResumeWhenNotHalted(t *testing.T) {
	b := NewBreaker(testConfig(), nil)
	assert.ErrorIs(t, b.Resume(day1), ErrNotHalted)
}

func TestExecErrorsTripAfterBound(t *testing.T) {
	b := NewBreaker(testConfig(), nil)
	b.Observe(day1, 10000)

	b.RecordExecError(day1)
	b.RecordExecError(day1)
	assert.Equal(t, Normal, b.Mode())

	mode := b.RecordExecError(day1)
	assert.Equal(t, Halted, mode)
	assert.Equal(t, "consecutive execution errors", b.Reason())
}

func TestExecSuccessResetsErrorStreak(t *testing.T) {
	b := NewBreaker(testConfig(), nil)
	b.Observe(day1, 10000)

	b.RecordExecError(day1)
	b.RecordExecError(day1)
	b.RecordExecSuccess()
	b.RecordExecError(day1)
	b.RecordExecError(day1)
	assert.Equal(t, Normal, b.Mode())
}

func TestDrawdownMeasuredFromDayStartEquity(t *testing.T) {
	b := NewBreaker(testConfig(), nil)

	b.Observe(day1, 10000)
	b.Observe(day1.Add(time.Hour), 12000) // intraday gain

	// 6% off the day-start 10000, not off the 12000 peak.
	mode := b.Observe(day1.Add(2*time.Hour), 9500)
	assert.Equal(t, Normal, mode)
}
