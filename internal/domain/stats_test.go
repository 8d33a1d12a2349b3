package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		mag  float64
		want Severity
	}{
		{0, SeverityLow},
		{4.49, SeverityLow},
		{4.5, SeverityMedium},
		{5.99, SeverityMedium},
		{6.0, SeverityHigh},
		{9.1, SeverityHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifySeverity(tc.mag), "mag %v", tc.mag)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
	assert.Equal(t, Stats{}, ComputeStats([]Earthquake{}))
}

func TestComputeStats(t *testing.T) {
	events := sampleQuakes()
	s := ComputeStats(events)

	assert.Equal(t, len(events), s.Total)
	assert.Equal(t, 6.8, s.MaxMagnitude)
	assert.Equal(t, 2.0, s.MinMagnitude)
	assert.InDelta(t, (2.0+5.5+6.8)/3, s.AverageMagnitude, 1e-9)
	assert.Equal(t, 120.0, s.MaxDepth)
	assert.Equal(t, 10.0, s.MinDepth)
	assert.InDelta(t, (35.0+10.0+120.0)/3, s.AverageDepth, 1e-9)
	assert.Equal(t, SeverityCounts{Low: 1, Medium: 1, High: 1}, s.BySeverity)
	assert.GreaterOrEqual(t, s.MaxMagnitude, s.MinMagnitude)
}

func TestComputeStats_SkipsUnknownValues(t *testing.T) {
	events := []Earthquake{
		quake("a", nil, "", 1, 0, 0, nil),
		quake("b", ptr(-0.5), "", 2, 0, 0, ptr(-1.2)),
	}
	s := ComputeStats(events)

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, -0.5, s.MaxMagnitude)
	assert.Equal(t, -0.5, s.MinMagnitude)
	assert.Equal(t, -1.2, s.MaxDepth)
	assert.Equal(t, 2, s.BySeverity.Low)
}

func TestPeak(t *testing.T) {
	_, ok := Peak(nil)
	assert.False(t, ok)

	events := []Earthquake{
		quake("first", ptr(5.0), "", 1, 0, 0, nil),
		quake("second", ptr(5.0), "", 2, 0, 0, nil),
		quake("none", nil, "", 3, 0, 0, nil),
	}
	peak, ok := Peak(events)
	require.True(t, ok)
	assert.Equal(t, "first", peak.ID)

	peak, ok = Peak([]Earthquake{quake("unknown", nil, "", 1, 0, 0, nil), quake("known", ptr(1.0), "", 2, 0, 0, nil)})
	require.True(t, ok)
	assert.Equal(t, "known", peak.ID)
}

func TestAlertRule(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	SetClock(fakeClock)
	t.Cleanup(func() { SetClock(nil) })

	rule := DefaultAlertRule()
	santiago := &Location{Latitude: -33.45, Longitude: -70.67}

	assert.False(t, rule.ShouldAlert(sampleQuakes()[0], nil), "below threshold")
	assert.True(t, rule.ShouldAlert(sampleQuakes()[1], nil), "no location means no radius check")
	assert.False(t, rule.ShouldAlert(sampleQuakes()[1], santiago), "Japan is far from Santiago")
	assert.True(t, rule.ShouldAlert(sampleQuakes()[2], santiago))

	alert, ok := rule.BuildAlert(sampleQuakes(), nil)
	require.True(t, ok)
	assert.Equal(t, "cl1", alert.EarthquakeID)
	assert.Equal(t, SeverityHigh, alert.Severity)
	assert.Equal(t, "MAJOR EARTHQUAKE WARNING", alert.Title)
	assert.Equal(t, "M6.8 • Offshore Valparaiso, Chile", alert.Body)
	assert.Equal(t, fakeClock.Now().UnixMilli(), alert.IssuedAt)

	_, ok = rule.BuildAlert(sampleQuakes()[:1], nil)
	assert.False(t, ok)
}

func TestAlertRule_TruncatesPlace(t *testing.T) {
	long := "This place description is deliberately much longer than sixty characters in total"
	alert, ok := DefaultAlertRule().BuildAlert([]Earthquake{quake("x", ptr(5.1), long, 1, 0, 0, nil)}, nil)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, alert.Severity)
	assert.Equal(t, "Moderate Earthquake Alert", alert.Title)
	assert.Equal(t, "M5.1 • "+long[:60]+"...", alert.Body)
}
