package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload reports an upstream response without the expected shape.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidCoordinates reports a latitude or longitude outside WGS-84 ranges.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Earthquake is a single event from a USGS summary feed. Values are copied
// between the raw, filtered and displayed lists and never mutated in place.
type Earthquake struct {
	ID        string   `json:"id"`
	Magnitude *float64 `json:"magnitude"`
	Place     string   `json:"place"`
	Time      int64    `json:"time"` // epoch milliseconds
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
	Depth     *float64 `json:"depth"` // km
	URL       string   `json:"url,omitempty"`
	Tsunami   bool     `json:"tsunami,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// EarthquakeDetail is the richer record returned by the detail endpoint.
type EarthquakeDetail struct {
	Earthquake
	Title   string `json:"title,omitempty"`
	MagType string `json:"mag_type,omitempty"`
	Felt    *int   `json:"felt,omitempty"`
	Alert   string `json:"alert,omitempty"`
}

// Timeframe selects which summary feed to fetch.
type Timeframe string

const (
	TimeframeHour  Timeframe = "hour"
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// ParseTimeframe returns the timeframe for s, falling back to day for
// anything unrecognized.
func ParseTimeframe(s string) Timeframe {
	switch tf := Timeframe(s); tf {
	case TimeframeHour, TimeframeDay, TimeframeWeek, TimeframeMonth:
		return tf
	default:
		return TimeframeDay
	}
}

// FeedFile returns the summary feed filename for the timeframe.
func (tf Timeframe) FeedFile() string {
	return "all_" + string(ParseTimeframe(string(tf))) + ".geojson"
}

// GeoJSON wire types for the USGS feeds.

// FeatureCollection is a summary feed body. Features is a pointer so a
// missing array can be told apart from an empty one.
type FeatureCollection struct {
	Features *[]Feature `json:"features"`
}

// Feature is one GeoJSON feature.
type Feature struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
	Geometry   *Geometry  `json:"geometry"`
}

// Properties holds the USGS event properties the dashboard reads.
type Properties struct {
	Mag     *float64 `json:"mag"`
	Place   *string  `json:"place"`
	Time    int64    `json:"time"`
	URL     string   `json:"url"`
	Tsunami int      `json:"tsunami"`
	Status  string   `json:"status"`
	Title   string   `json:"title"`
	MagType string   `json:"magType"`
	Felt    *int     `json:"felt"`
	Alert   *string  `json:"alert"`
}

// Geometry is a GeoJSON point: [lon, lat, depth].
type Geometry struct {
	Coordinates []*float64 `json:"coordinates"`
}

// ToEarthquake flattens a feature into an Earthquake.
func (f Feature) ToEarthquake() Earthquake {
	eq := Earthquake{
		ID:        f.ID,
		Magnitude: f.Properties.Mag,
		Time:      f.Properties.Time,
		URL:       f.Properties.URL,
		Tsunami:   f.Properties.Tsunami != 0,
		Status:    f.Properties.Status,
	}
	if f.Properties.Place != nil {
		eq.Place = *f.Properties.Place
	}
	if f.Geometry != nil {
		coords := f.Geometry.Coordinates
		if len(coords) > 0 && coords[0] != nil {
			eq.Longitude = *coords[0]
		}
		if len(coords) > 1 && coords[1] != nil {
			eq.Latitude = *coords[1]
		}
		if len(coords) > 2 {
			eq.Depth = coords[2]
		}
	}
	return eq
}

// ParseFeatures decodes a JSON array of GeoJSON features.
func ParseFeatures(data []byte) ([]Earthquake, error) {
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}
	out := make([]Earthquake, 0, len(features))
	for _, f := range features {
		out = append(out, f.ToEarthquake())
	}
	return out, nil
}

// ParseDetail decodes a detail endpoint body. A body without properties is
// rejected with ErrInvalidPayload.
func ParseDetail(data []byte) (EarthquakeDetail, error) {
	var raw struct {
		ID         string          `json:"id"`
		Properties json.RawMessage `json:"properties"`
		Geometry   *Geometry       `json:"geometry"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return EarthquakeDetail{}, fmt.Errorf("parse detail: %w", err)
	}
	if len(raw.Properties) == 0 || string(raw.Properties) == "null" {
		return EarthquakeDetail{}, fmt.Errorf("detail %q: missing properties: %w", raw.ID, ErrInvalidPayload)
	}

	var props Properties
	if err := json.Unmarshal(raw.Properties, &props); err != nil {
		return EarthquakeDetail{}, fmt.Errorf("parse detail properties: %w", err)
	}

	f := Feature{ID: raw.ID, Properties: props, Geometry: raw.Geometry}
	d := EarthquakeDetail{
		Earthquake: f.ToEarthquake(),
		Title:      props.Title,
		MagType:    props.MagType,
		Felt:       props.Felt,
	}
	if props.Alert != nil {
		d.Alert = *props.Alert
	}
	return d, nil
}

// MagnitudeOr returns the magnitude or def when it is unknown.
func (e Earthquake) MagnitudeOr(def float64) float64 {
	if e.Magnitude == nil {
		return def
	}
	return *e.Magnitude
}
