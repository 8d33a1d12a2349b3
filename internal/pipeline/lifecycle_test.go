package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startRun runs the refresh loop in the background and waits until the
// auto-refresh ticker is armed.
func startRun(t *testing.T, h *harness) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.p.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, h.clock.BlockUntilContext(waitCtx, 1))

	return func() {
		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancellation")
		}
	}
}

func TestRun_InitialRefreshAndTicker(t *testing.T) {
	h := newHarness(t, func(o *pipeline.Options) {
		o.Locations = &mockLocations{loc: domain.DefaultLocation, msg: "Location access denied. Using default location."}
		o.RefreshInterval = 5 * time.Minute
	})
	stop := startRun(t, h)
	defer stop()

	snap := h.p.Snapshot()
	assert.Equal(t, pipeline.StatusSuccess, snap.Status)
	assert.Equal(t, pipeline.TriggerInitial, snap.Trigger)
	assert.True(t, snap.AutoRefresh)
	assert.True(t, hasNotice(snap, "Location access denied. Using default location."))
	require.NotNil(t, snap.Weather)
	assert.Equal(t, int32(1), h.quakes.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.AutoRefreshRunning), 0)

	h.clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return h.quakes.calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return h.p.Snapshot().Trigger == pipeline.TriggerTimer
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRun_StopsTickerOnCancel(t *testing.T) {
	h := newHarness(t)
	stop := startRun(t, h)
	stop()

	assert.False(t, h.p.Snapshot().AutoRefresh)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.AutoRefreshRunning), 0)
}

func TestRun_LoadsSavedFilters(t *testing.T) {
	h := newHarness(t)
	saved := domain.FilterCriteria{MinMagnitude: ptr(6.0), Timeframe: domain.TimeframeDay}
	require.NoError(t, h.prefs.Save(context.Background(), domain.PrefFilters, saved))

	stop := startRun(t, h)
	defer stop()

	snap := h.p.Snapshot()
	assert.Equal(t, []string{"cl1"}, ids(snap.Earthquakes))
	assert.Equal(t, domain.SortByTime, snap.Filters.SortBy)
}

func TestRun_IgnoresInvalidSavedFilters(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.prefs.Save(context.Background(), domain.PrefFilters, map[string]any{"sort_by": "nonsense"}))

	stop := startRun(t, h)
	defer stop()

	assert.Equal(t, domain.DefaultFilterCriteria(), h.p.Snapshot().Filters)
}

func TestSetVisible_PausesAndResumes(t *testing.T) {
	h := newHarness(t)
	stop := startRun(t, h)
	defer stop()
	ctx := context.Background()

	h.p.SetVisible(ctx, false)
	require.Eventually(t, func() bool { return !h.p.Snapshot().AutoRefresh }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.prefs.has(domain.PrefLastVisit))

	// No ticker while hidden.
	h.clock.Advance(4 * time.Minute)
	assert.Equal(t, int32(1), h.quakes.calls.Load())

	// Hidden for four minutes: resume without an extra refresh.
	snap := h.p.SetVisible(ctx, true)
	assert.Equal(t, int32(1), h.quakes.calls.Load())
	assert.True(t, snap.Visible)
	require.Eventually(t, func() bool { return h.p.Snapshot().AutoRefresh }, 2*time.Second, 5*time.Millisecond)
}

func TestSetVisible_RefreshesAfterLongAbsence(t *testing.T) {
	h := newHarness(t)
	stop := startRun(t, h)
	defer stop()
	ctx := context.Background()

	h.p.SetVisible(ctx, false)
	require.Eventually(t, func() bool { return !h.p.Snapshot().AutoRefresh }, 2*time.Second, 5*time.Millisecond)

	h.clock.Advance(6 * time.Minute)
	snap := h.p.SetVisible(ctx, true)
	assert.Equal(t, int32(2), h.quakes.calls.Load())
	assert.Equal(t, pipeline.TriggerVisibility, snap.Trigger)
}

func TestSetVisible_NoChangeIsNoop(t *testing.T) {
	h := newHarness(t)
	snap := h.p.SetVisible(context.Background(), true)
	assert.True(t, snap.Visible)
	assert.Equal(t, int32(0), h.quakes.calls.Load())
}

func TestSetOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.p.Refresh(ctx, pipeline.TriggerInitial)

	snap := h.p.SetOnline(ctx, false)
	assert.False(t, snap.Online)
	assert.True(t, hasNotice(snap, pipeline.MsgOffline))
	assert.Equal(t, pipeline.StatusSuccess, snap.Status, "going offline keeps current data")

	snap = h.p.SetOnline(ctx, true)
	assert.True(t, snap.Online)
	assert.True(t, hasNotice(snap, pipeline.MsgOnline))
	assert.Equal(t, pipeline.TriggerReconnect, snap.Trigger)
	assert.Equal(t, int32(1), h.cache.clears.Load())
	assert.Equal(t, int32(2), h.quakes.calls.Load())
}

func TestRun_SkipsTimerWhileOffline(t *testing.T) {
	h := newHarness(t)
	stop := startRun(t, h)
	defer stop()

	h.p.SetOnline(context.Background(), false)
	h.clock.Advance(5 * time.Minute)

	// The tick is still consumed; wait for the ticker to re-arm.
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int32(1), h.quakes.calls.Load())
}
