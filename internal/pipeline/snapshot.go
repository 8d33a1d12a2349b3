package pipeline

import (
	"slices"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

// Status is the outcome of the most recent refresh.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Trigger names what started a refresh.
type Trigger string

const (
	TriggerInitial    Trigger = "initial"
	TriggerManual     Trigger = "manual"
	TriggerTimer      Trigger = "timer"
	TriggerReconnect  Trigger = "reconnect"
	TriggerVisibility Trigger = "visibility"
	TriggerRetry      Trigger = "retry"
	TriggerFilter     Trigger = "filter"
	TriggerLocation   Trigger = "location"
)

// clearsCache reports whether the trigger discards cached responses first.
func (t Trigger) clearsCache() bool {
	return t == TriggerManual || t == TriggerReconnect
}

// Snapshot is an immutable view of the dashboard state. Slices are copies
// owned by the snapshot.
type Snapshot struct {
	RunID          string                 `json:"run_id,omitempty"`
	Status         Status                 `json:"status"`
	Trigger        Trigger                `json:"trigger,omitempty"`
	Earthquakes    []domain.Earthquake    `json:"earthquakes"`
	TotalFiltered  int                    `json:"total_filtered"`
	TotalFetched   int                    `json:"total_fetched"`
	Page           int                    `json:"page"`
	HasMore        bool                   `json:"has_more"`
	Stats          domain.Stats           `json:"stats"`
	Peak           *domain.Earthquake     `json:"peak"`
	Weather        *domain.Weather        `json:"weather"`
	WeatherDisplay *domain.WeatherDisplay `json:"weather_display,omitempty"`
	Location       *domain.Location       `json:"location"`
	Filters        domain.FilterCriteria  `json:"filters"`
	Notices        []Notice               `json:"notices"`
	RetryAvailable bool                   `json:"retry_available"`
	LastUpdated    *time.Time             `json:"last_updated"`
	Online         bool                   `json:"online"`
	Visible        bool                   `json:"visible"`
	AutoRefresh    bool                   `json:"auto_refresh"`
	APIStatus      *APIStatus             `json:"api_status,omitempty"`
}

// state is the mutable dashboard context. It is only touched with
// Pipeline.mu held.
type state struct {
	status   Status
	inflight int
	trigger  Trigger
	runID    string

	raw      []domain.Earthquake
	filtered []domain.Earthquake
	weather  *domain.Weather
	location *domain.Location
	criteria domain.FilterCriteria
	page     int

	// lastGood holds the last successful list per timeframe for the
	// degraded fallback.
	lastGood map[domain.Timeframe][]domain.Earthquake

	notices        []Notice
	retryAvailable bool
	lastSuccess    time.Time

	online      bool
	visible     bool
	hiddenAt    time.Time
	autoRefresh bool
	apiStatus   *APIStatus

	notifications bool
	lastAlertID   string

	// appliedSeq is the start sequence of the refresh whose result is shown;
	// criteriaGen bumps on every filter or location change.
	appliedSeq  uint64
	criteriaGen uint64
}

func (s *state) snapshot(pageSize int) Snapshot {
	snap := Snapshot{
		RunID:          s.runID,
		Status:         s.status,
		Trigger:        s.trigger,
		TotalFiltered:  len(s.filtered),
		TotalFetched:   len(s.raw),
		Page:           s.page,
		Stats:          domain.ComputeStats(s.filtered),
		Filters:        s.criteria,
		Notices:        slices.Clone(s.notices),
		RetryAvailable: s.retryAvailable,
		Online:         s.online,
		Visible:        s.visible,
		AutoRefresh:    s.autoRefresh,
	}
	if s.inflight > 0 {
		snap.Status = StatusLoading
	}

	shown := min(s.page*pageSize, len(s.filtered))
	snap.Earthquakes = slices.Clone(s.filtered[:shown])
	if snap.Earthquakes == nil {
		snap.Earthquakes = []domain.Earthquake{}
	}
	snap.HasMore = shown < len(s.filtered)

	if peak, ok := domain.Peak(s.filtered); ok {
		snap.Peak = &peak
	}
	if s.weather != nil {
		w := *s.weather
		display := domain.FormatWeather(w)
		snap.Weather, snap.WeatherDisplay = &w, &display
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		snap.LastUpdated = &t
	}
	if s.apiStatus != nil {
		st := *s.apiStatus
		snap.APIStatus = &st
	}
	if snap.Notices == nil {
		snap.Notices = []Notice{}
	}
	return snap
}
