package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidTheme is returned by SetTheme for unknown themes.
var ErrInvalidTheme = errors.New("invalid theme")

// Run resolves the location, performs the initial refresh and then
// refreshes on a fixed interval while the dashboard is visible. It returns
// when ctx is cancelled; the ticker is stopped on the way out.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("refresh loop started", "interval", p.interval)
	p.loadPreferences(ctx)
	p.resolveLocation(ctx)
	p.Refresh(ctx, TriggerInitial)

	var (
		ticker clockwork.Ticker
		tick   <-chan time.Time
	)
	start := func() {
		if ticker != nil {
			return
		}
		p.setAutoRefresh(true)
		ticker = p.clock.NewTicker(p.interval)
		tick = ticker.Chan()
	}
	stop := func() {
		if ticker == nil {
			return
		}
		ticker.Stop()
		ticker, tick = nil, nil
		p.setAutoRefresh(false)
	}
	defer stop()

	if p.isVisible() {
		start()
	}
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		case <-tick:
			p.onTick(ctx)
		case <-p.lifecycle:
			if p.isVisible() {
				start()
			} else {
				stop()
			}
		}
	}
}

func (p *Pipeline) onTick(ctx context.Context) {
	if s, ok := p.cache.(interface{ Sweep() int }); ok {
		if n := s.Sweep(); n > 0 {
			p.logger.Debug("swept expired cache entries", "removed", n)
		}
	}

	p.mu.Lock()
	online := p.st.online
	p.mu.Unlock()
	if !online {
		p.logger.Info("skipping timed refresh while offline")
		return
	}
	p.Refresh(ctx, TriggerTimer)
}

func (p *Pipeline) setAutoRefresh(on bool) {
	p.mu.Lock()
	p.st.autoRefresh = on
	p.mu.Unlock()
	if on {
		p.metrics.AutoRefreshRunning.Set(1)
	} else {
		p.metrics.AutoRefreshRunning.Set(0)
	}
}

func (p *Pipeline) isVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.visible
}

func (p *Pipeline) signalLifecycle() {
	select {
	case p.lifecycle <- struct{}{}:
	default:
	}
}

// SetVisible records a visibility change. Hiding pauses auto-refresh;
// showing resumes it and refreshes at once if the dashboard was hidden for
// longer than the stale threshold.
func (p *Pipeline) SetVisible(ctx context.Context, visible bool) Snapshot {
	p.mu.Lock()
	was := p.st.visible
	p.st.visible = visible
	stale := false
	switch {
	case was && !visible:
		p.st.hiddenAt = p.clock.Now()
	case !was && visible:
		hidden := p.clock.Since(p.st.hiddenAt)
		stale = hidden > p.staleAfter && p.st.online
		p.logger.Debug("dashboard visible again", "hidden_for", hidden)
	}
	p.mu.Unlock()

	if was == visible {
		return p.Snapshot()
	}
	p.signalLifecycle()
	if !visible {
		p.savePreference(ctx, domain.PrefLastVisit, domain.NowMillis())
		return p.Snapshot()
	}
	if stale {
		return p.Refresh(ctx, TriggerVisibility)
	}
	return p.Snapshot()
}

// SetOnline records a connectivity change. Going offline leaves the current
// data in place; coming back online refreshes with a cleared cache.
func (p *Pipeline) SetOnline(ctx context.Context, online bool) Snapshot {
	p.mu.Lock()
	was := p.st.online
	p.st.online = online
	switch {
	case was && !online:
		p.pushNotice(LevelWarning, MsgOffline)
	case !was && online:
		p.pushNotice(LevelSuccess, MsgOnline)
	}
	p.mu.Unlock()

	if !was && online {
		p.logger.Info("connectivity restored")
		return p.Refresh(ctx, TriggerReconnect)
	}
	if was && !online {
		p.logger.Warn("connectivity lost")
	}
	return p.Snapshot()
}

// UpdateFilters replaces the filter criteria. A timeframe change refetches;
// anything else re-filters the list already held.
func (p *Pipeline) UpdateFilters(ctx context.Context, c domain.FilterCriteria) (Snapshot, error) {
	p.mu.Lock()
	current := p.st.criteria.Timeframe
	p.mu.Unlock()

	c = normalize(c, current)
	if err := p.validator.validate(c); err != nil {
		return p.Snapshot(), err
	}

	p.mu.Lock()
	timeframeChanged := c.Timeframe != p.st.criteria.Timeframe
	p.st.criteria = c
	if timeframeChanged {
		p.st.criteriaGen++
	}
	p.setEventsLocked(p.st.raw)
	p.mu.Unlock()

	p.savePreference(ctx, domain.PrefFilters, c)
	if timeframeChanged {
		return p.Refresh(ctx, TriggerFilter), nil
	}
	return p.Snapshot(), nil
}

// SetLocation stores a user-chosen location and refreshes for it.
func (p *Pipeline) SetLocation(ctx context.Context, loc domain.Location) (Snapshot, error) {
	if p.locations == nil {
		return p.Snapshot(), errors.New("location updates are not configured")
	}
	saved, err := p.locations.Set(ctx, loc)
	if err != nil {
		return p.Snapshot(), err
	}

	p.mu.Lock()
	p.st.location = &saved
	p.st.criteriaGen++
	p.mu.Unlock()
	return p.Refresh(ctx, TriggerLocation), nil
}

// Theme returns the saved theme, light when unset.
func (p *Pipeline) Theme(ctx context.Context) domain.Theme {
	theme := domain.ThemeLight
	if p.prefs == nil {
		return theme
	}
	var saved domain.Theme
	ok, err := p.prefs.Load(ctx, domain.PrefTheme, &saved)
	if err != nil {
		p.logger.Warn("ignoring saved theme", "error", err)
	}
	if ok && saved.Valid() {
		theme = saved
	}
	return theme
}

// SetTheme persists the theme.
func (p *Pipeline) SetTheme(ctx context.Context, theme domain.Theme) error {
	if !theme.Valid() {
		return ErrInvalidTheme
	}
	if p.prefs == nil {
		return nil
	}
	return p.prefs.Save(ctx, domain.PrefTheme, theme)
}

// SetNotifications turns alert publishing on or off and persists the choice.
func (p *Pipeline) SetNotifications(ctx context.Context, enabled bool) {
	p.mu.Lock()
	p.st.notifications = enabled
	p.mu.Unlock()
	p.savePreference(ctx, domain.PrefNotifications, enabled)
}

// ResetPreferences deletes every stored preference and puts filters and
// notifications back to their defaults. The current location stays in use
// until the next restart.
func (p *Pipeline) ResetPreferences(ctx context.Context) (Snapshot, error) {
	if p.prefs != nil {
		if err := p.prefs.Clear(ctx); err != nil {
			return p.Snapshot(), err
		}
	}

	p.mu.Lock()
	timeframeChanged := p.defaults.Timeframe != p.st.criteria.Timeframe
	p.st.criteria = p.defaults
	p.st.notifications = true
	if timeframeChanged {
		p.st.criteriaGen++
	}
	p.setEventsLocked(p.st.raw)
	p.mu.Unlock()

	p.logger.Info("preferences reset")
	if timeframeChanged {
		return p.Refresh(ctx, TriggerFilter), nil
	}
	return p.Snapshot(), nil
}

func (p *Pipeline) loadPreferences(ctx context.Context) {
	if p.prefs == nil {
		return
	}

	var saved domain.FilterCriteria
	ok, err := p.prefs.Load(ctx, domain.PrefFilters, &saved)
	switch {
	case err != nil:
		p.logger.Warn("ignoring saved filters", "error", err)
	case ok:
		p.mu.Lock()
		current := p.st.criteria.Timeframe
		p.mu.Unlock()
		saved = normalize(saved, current)
		if err := p.validator.validate(saved); err != nil {
			p.logger.Warn("ignoring saved filters", "error", err)
		} else {
			p.mu.Lock()
			p.st.criteria = saved
			p.mu.Unlock()
		}
	}

	var notifications bool
	if ok, err := p.prefs.Load(ctx, domain.PrefNotifications, &notifications); err == nil && ok {
		p.mu.Lock()
		p.st.notifications = notifications
		p.mu.Unlock()
	}
}

func (p *Pipeline) resolveLocation(ctx context.Context) {
	if p.locations == nil {
		return
	}
	loc, msg := p.locations.Resolve(ctx)
	p.logger.Info("location resolved", "source", loc.Source, "name", loc.Name)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.location = &loc
	if msg != "" {
		p.pushNotice(LevelWarning, msg)
	}
}
