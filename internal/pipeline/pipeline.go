package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/cache"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNoCachedData is returned by UseCachedData when nothing has been loaded yet.
var ErrNoCachedData = errors.New("no cached earthquake data")

// LocationResolver picks and stores the dashboard location.
type LocationResolver interface {
	Resolve(ctx context.Context) (domain.Location, string)
	Set(ctx context.Context, loc domain.Location) (domain.Location, error)
}

// Preferences persists small JSON values across restarts.
type Preferences interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context, key string, dst any) (bool, error)
	Clear(ctx context.Context) error
}

// AlertPublisher delivers high-magnitude alerts.
type AlertPublisher interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// Options wires a Pipeline. Locations, Prefs and Alerts may be nil.
type Options struct {
	Data      *DataAccess
	Cache     cache.Cache
	Locations LocationResolver
	Prefs     Preferences
	Alerts    AlertPublisher
	AlertRule domain.AlertRule

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics

	RefreshInterval  time.Duration
	StaleAfter       time.Duration
	PageSize         int
	DefaultTimeframe domain.Timeframe
}

// Pipeline is the refresh orchestrator. It owns the dashboard state and
// hands out immutable Snapshots.
type Pipeline struct {
	data      *DataAccess
	cache     cache.Cache
	locations LocationResolver
	prefs     Preferences
	alerts    AlertPublisher
	rule      domain.AlertRule
	validator *filterValidator

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	interval   time.Duration
	staleAfter time.Duration
	pageSize   int

	refreshes singleflight.Group
	seq       atomic.Uint64
	ready     atomic.Bool
	lifecycle chan struct{}
	defaults  domain.FilterCriteria

	// life ends detached refresh runs on Close.
	life    context.Context
	stop    context.CancelFunc
	runsMu  sync.Mutex
	closed  bool
	running sync.WaitGroup

	mu sync.Mutex
	st state
}

// New creates a Pipeline in the idle state.
func New(opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 5 * time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}

	criteria := domain.DefaultFilterCriteria()
	if opts.DefaultTimeframe != "" {
		criteria.Timeframe = domain.ParseTimeframe(string(opts.DefaultTimeframe))
	}

	life, stop := context.WithCancel(context.Background())
	p := &Pipeline{
		data:       opts.Data,
		cache:      opts.Cache,
		locations:  opts.Locations,
		prefs:      opts.Prefs,
		alerts:     opts.Alerts,
		rule:       opts.AlertRule,
		validator:  newFilterValidator(),
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		interval:   opts.RefreshInterval,
		staleAfter: opts.StaleAfter,
		pageSize:   opts.PageSize,
		lifecycle:  make(chan struct{}, 1),
		defaults:   criteria,
		life:       life,
		stop:       stop,
		st: state{
			status:        StatusIdle,
			criteria:      criteria,
			page:          1,
			lastGood:      make(map[domain.Timeframe][]domain.Earthquake),
			online:        true,
			visible:       true,
			notifications: true,
		},
	}
	p.data.notify = p.notify
	return p
}

// CheckReadiness returns nil once a refresh has produced data to show.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("dashboard has not completed a refresh yet")
	}
	return nil
}

// Snapshot returns the current dashboard state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.snapshot(p.pageSize)
}

// Refresh fetches earthquakes and weather and applies the current filters.
// Concurrent refreshes with the same trigger and timeframe share one run;
// a run that finishes after a newer one, or after the filters changed, is
// discarded.
//
// The run is detached from ctx: cancelling ctx only stops this caller from
// waiting, and the run still completes for anyone else that joined it. Runs
// end early only when the Pipeline is closed.
func (p *Pipeline) Refresh(ctx context.Context, trigger Trigger) Snapshot {
	p.mu.Lock()
	tf := p.st.criteria.Timeframe
	p.mu.Unlock()

	key := string(trigger) + ":" + string(tf)
	ch := p.refreshes.DoChan(key, func() (any, error) {
		p.runDetached(ctx, trigger)
		return nil, nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			p.logger.Debug("joined in-flight refresh", "trigger", trigger)
		}
	case <-ctx.Done():
		p.logger.Debug("stopped waiting for refresh", "trigger", trigger, "reason", ctx.Err())
	}
	return p.Snapshot()
}

func (p *Pipeline) runDetached(ctx context.Context, trigger Trigger) {
	p.runsMu.Lock()
	if p.closed {
		p.runsMu.Unlock()
		return
	}
	p.running.Add(1)
	p.runsMu.Unlock()
	defer p.running.Done()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(p.life, cancel)
	defer stop()

	p.refresh(runCtx, trigger)
}

// Close abandons in-flight refreshes and waits for them to return, or for
// ctx to end. Refreshes started after Close do nothing.
func (p *Pipeline) Close(ctx context.Context) error {
	p.runsMu.Lock()
	p.closed = true
	p.runsMu.Unlock()
	p.stop()

	done := make(chan struct{})
	go func() {
		p.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight refreshes: %w", ctx.Err())
	}
}

type refreshRun struct {
	id          string
	seq         uint64
	criteriaGen uint64
	trigger     Trigger
	timeframe   domain.Timeframe
	location    *domain.Location
	start       time.Time
}

func (p *Pipeline) refresh(ctx context.Context, trigger Trigger) {
	run := p.beginRun(trigger)
	logger := p.logger.With("run_id", run.id, "trigger", trigger)
	logger.Info("refresh started", "timeframe", run.timeframe)

	if trigger.clearsCache() && p.cache != nil {
		p.cache.Clear(ctx)
	}

	var (
		events  []domain.Earthquake
		weather *domain.Weather
		g       errgroup.Group
	)
	g.Go(func() error {
		var err error
		events, err = p.data.Earthquakes(ctx, run.timeframe)
		return err
	})
	// Weather failures degrade to a notice and never fail the group.
	if run.location != nil {
		loc := *run.location
		g.Go(func() error {
			weather = p.data.FetchWeather(ctx, loc.Latitude, loc.Longitude)
			return nil
		})
	}
	fetchErr := g.Wait()

	if ctx.Err() != nil {
		p.endRun()
		logger.Info("refresh abandoned", "reason", ctx.Err())
		return
	}

	outcome, alertCandidates, applied := p.applyRun(run, events, fetchErr, weather)
	p.metrics.RefreshDuration.Observe(p.clock.Since(run.start).Seconds())
	if !applied {
		logger.Info("refresh result discarded as stale")
		return
	}
	p.metrics.Refreshes.WithLabelValues(string(trigger), string(outcome)).Inc()

	switch outcome {
	case StatusSuccess:
		logger.Info("refresh complete", "earthquakes", len(events), "weather", weather != nil)
	case StatusDegraded:
		logger.Warn("refresh failed, serving cached earthquakes", "error", fetchErr)
	default:
		logger.Error("refresh failed with no cached data", "error", fetchErr)
	}

	if outcome != StatusFailed {
		p.ready.Store(true)
		p.savePreference(ctx, domain.PrefLastVisit, domain.NowMillis())
	}
	if outcome == StatusSuccess {
		p.maybeAlert(ctx, alertCandidates, run.location)
	}
}

func (p *Pipeline) beginRun(trigger Trigger) refreshRun {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.st.inflight++
	run := refreshRun{
		id:          uuid.NewString(),
		seq:         p.seq.Add(1),
		criteriaGen: p.st.criteriaGen,
		trigger:     trigger,
		timeframe:   p.st.criteria.Timeframe,
		start:       p.clock.Now(),
	}
	if p.st.location != nil {
		loc := *p.st.location
		run.location = &loc
	}
	return run
}

func (p *Pipeline) endRun() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.inflight--
}

// applyRun folds a finished run into the state. It returns the resulting
// status, the list alerts should be computed from, and whether the run was
// applied at all.
func (p *Pipeline) applyRun(run refreshRun, events []domain.Earthquake, fetchErr error, weather *domain.Weather) (Status, []domain.Earthquake, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.st.inflight--
	if run.criteriaGen != p.st.criteriaGen || run.seq < p.st.appliedSeq {
		return "", nil, false
	}
	p.st.appliedSeq = run.seq
	p.st.runID = run.id
	p.st.trigger = run.trigger

	if fetchErr != nil {
		p.pushNotice(LevelError, MsgEarthquakeFetchFailed)
		fallback := p.fallbackLocked(run.timeframe)
		if len(fallback) == 0 {
			p.st.status = StatusFailed
			p.st.retryAvailable = true
			p.pushNotice(LevelError, MsgLoadFailed)
			return StatusFailed, nil, true
		}
		p.setEventsLocked(fallback)
		p.st.weather = nil
		p.st.status = StatusDegraded
		p.st.retryAvailable = false
		p.pushNotice(LevelWarning, MsgUsingCachedData)
		return StatusDegraded, nil, true
	}

	p.st.lastGood[run.timeframe] = events
	p.setEventsLocked(events)
	p.st.weather = weather
	p.st.status = StatusSuccess
	p.st.retryAvailable = false
	p.st.lastSuccess = p.clock.Now()
	if run.trigger == TriggerManual || run.trigger == TriggerRetry {
		p.pushNotice(LevelSuccess, MsgRefreshed)
	}
	return StatusSuccess, events, true
}

// fallbackLocked returns the last good list for tf, else for the day feed.
func (p *Pipeline) fallbackLocked(tf domain.Timeframe) []domain.Earthquake {
	if events := p.st.lastGood[tf]; len(events) > 0 {
		return events
	}
	return p.st.lastGood[domain.TimeframeDay]
}

func (p *Pipeline) setEventsLocked(events []domain.Earthquake) {
	p.st.raw = events
	p.st.filtered = domain.Apply(events, p.st.criteria)
	p.st.page = 1
	p.metrics.EarthquakesFiltered.Set(float64(len(p.st.filtered)))
}

// UseCachedData shows the last successfully fetched list without contacting
// upstream.
func (p *Pipeline) UseCachedData() (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fallback := p.fallbackLocked(p.st.criteria.Timeframe)
	if len(fallback) == 0 {
		return p.st.snapshot(p.pageSize), ErrNoCachedData
	}
	p.setEventsLocked(fallback)
	p.st.weather = nil
	p.st.status = StatusDegraded
	p.st.retryAvailable = false
	p.pushNotice(LevelInfo, MsgUsingCachedData)
	return p.st.snapshot(p.pageSize), nil
}

// Detail returns the full record for one event. Errors propagate.
func (p *Pipeline) Detail(ctx context.Context, id string) (domain.EarthquakeDetail, error) {
	return p.data.FetchEarthquakeDetails(ctx, id)
}

// CheckAPIHealth pings both upstreams and records the result.
func (p *Pipeline) CheckAPIHealth(ctx context.Context) APIStatus {
	status := p.data.CheckAPIHealth(ctx)
	p.mu.Lock()
	p.st.apiStatus = &status
	p.mu.Unlock()
	return status
}

// LoadMore reveals the next page of the filtered list.
func (p *Pipeline) LoadMore() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.st.page*p.pageSize < len(p.st.filtered) {
		p.st.page++
	}
	return p.st.snapshot(p.pageSize)
}

// Page returns one page of the filtered list.
func (p *Pipeline) Page(n int) domain.Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.Paginate(p.st.filtered, n, p.pageSize)
}

func (p *Pipeline) maybeAlert(ctx context.Context, events []domain.Earthquake, loc *domain.Location) {
	if p.alerts == nil {
		return
	}
	alert, ok := p.rule.BuildAlert(events, loc)
	if !ok {
		return
	}

	p.mu.Lock()
	skip := !p.st.notifications || alert.EarthquakeID == p.st.lastAlertID
	p.mu.Unlock()
	if skip {
		return
	}

	if err := p.alerts.Publish(ctx, alert); err != nil {
		p.logger.Error("publish alert failed", "earthquake_id", alert.EarthquakeID, "error", err)
		return
	}
	p.metrics.AlertsPublished.Inc()

	p.mu.Lock()
	p.st.lastAlertID = alert.EarthquakeID
	p.pushNotice(LevelWarning, alert.Title+": "+alert.Body)
	p.mu.Unlock()
}

// notify records a notice from outside the lock.
func (p *Pipeline) notify(level Level, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushNotice(level, msg)
}

func (p *Pipeline) pushNotice(level Level, msg string) {
	p.st.notices = append(p.st.notices, Notice{Level: level, Message: msg, At: p.clock.Now()})
	if over := len(p.st.notices) - maxNotices; over > 0 {
		p.st.notices = slices.Delete(p.st.notices, 0, over)
	}
}

func (p *Pipeline) savePreference(ctx context.Context, key string, value any) {
	if p.prefs == nil {
		return
	}
	if err := p.prefs.Save(ctx, key, value); err != nil {
		p.logger.Warn("save preference failed", "key", key, "error", err)
	}
}
