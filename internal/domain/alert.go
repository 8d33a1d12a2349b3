package domain

import (
	"fmt"
	"unicode/utf8"
)

// AlertRule decides which events are worth a push notification.
type AlertRule struct {
	MinMagnitude float64
	RadiusKm     float64
}

// DefaultAlertRule notifies for M5.0+ within 500 km.
func DefaultAlertRule() AlertRule {
	return AlertRule{MinMagnitude: 5.0, RadiusKm: 500}
}

// ShouldAlert reports whether e passes the magnitude threshold and, when a
// location is known, lies within the radius of it.
func (r AlertRule) ShouldAlert(e Earthquake, loc *Location) bool {
	if e.Magnitude == nil || *e.Magnitude < r.MinMagnitude {
		return false
	}
	if loc != nil && r.RadiusKm > 0 {
		if DistanceKm(loc.Latitude, loc.Longitude, e.Latitude, e.Longitude) > r.RadiusKm {
			return false
		}
	}
	return true
}

// Alert is the notification published for the strongest qualifying event.
type Alert struct {
	EarthquakeID string   `json:"earthquake_id"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Severity     Severity `json:"severity"`
	Magnitude    float64  `json:"magnitude"`
	Place        string   `json:"place"`
	Time         int64    `json:"time"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	IssuedAt     int64    `json:"issued_at"`
}

var alertTitles = map[Severity]string{
	SeverityLow:    "Minor Earthquake Detected",
	SeverityMedium: "Moderate Earthquake Alert",
	SeverityHigh:   "MAJOR EARTHQUAKE WARNING",
}

// BuildAlert picks the peak of the qualifying events. The bool is false when
// nothing qualifies.
func (r AlertRule) BuildAlert(events []Earthquake, loc *Location) (Alert, bool) {
	var qualifying []Earthquake
	for _, e := range events {
		if r.ShouldAlert(e, loc) {
			qualifying = append(qualifying, e)
		}
	}
	peak, ok := Peak(qualifying)
	if !ok {
		return Alert{}, false
	}

	mag := peak.MagnitudeOr(0)
	sev := ClassifySeverity(mag)
	return Alert{
		EarthquakeID: peak.ID,
		Title:        alertTitles[sev],
		Body:         fmt.Sprintf("M%.1f • %s", mag, truncate(peak.Place, 60)),
		Severity:     sev,
		Magnitude:    mag,
		Place:        peak.Place,
		Time:         peak.Time,
		Latitude:     peak.Latitude,
		Longitude:    peak.Longitude,
		IssuedAt:     NowMillis(),
	}, true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
