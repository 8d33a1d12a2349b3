package domain

import (
	"cmp"
	"slices"
	"strings"
)

// SortKey selects the field earthquakes are ordered by.
type SortKey string

const (
	SortByTime      SortKey = "time"
	SortByMagnitude SortKey = "magnitude"
	SortByDepth     SortKey = "depth"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Point is a latitude/longitude pair.
type Point struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// FilterCriteria is replaced wholesale on every change. A nil or empty field
// means no constraint.
type FilterCriteria struct {
	MinMagnitude *float64 `json:"min_magnitude,omitempty" validate:"omitempty,gte=-2,lte=10"`
	MaxMagnitude *float64 `json:"max_magnitude,omitempty" validate:"omitempty,gte=-2,lte=10"`
	StartTime    *int64   `json:"start_time,omitempty" validate:"omitempty,gte=0"`
	EndTime      *int64   `json:"end_time,omitempty" validate:"omitempty,gte=0"`
	Search       string   `json:"search,omitempty" validate:"max=200"`
	Center       *Point   `json:"center,omitempty" validate:"omitempty"`
	RadiusKm     *float64 `json:"radius_km,omitempty" validate:"omitempty,gt=0"`

	SortBy    SortKey   `json:"sort_by,omitempty" validate:"omitempty,oneof=time magnitude depth"`
	Order     SortOrder `json:"order,omitempty" validate:"omitempty,oneof=asc desc"`
	Timeframe Timeframe `json:"timeframe,omitempty" validate:"omitempty,oneof=hour day week month"`
}

// DefaultFilterCriteria mirrors the dashboard's initial controls: M2.5+ over
// the last day, newest first.
func DefaultFilterCriteria() FilterCriteria {
	minMag := 2.5
	return FilterCriteria{
		MinMagnitude: &minMag,
		SortBy:       SortByTime,
		Order:        OrderDesc,
		Timeframe:    TimeframeDay,
	}
}

// Filter returns the events matching every constraint in c. The input slice
// is never modified; the result is a new slice.
func Filter(events []Earthquake, c FilterCriteria) []Earthquake {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]Earthquake, 0, len(events))
	for _, e := range events {
		if matches(e, c, search) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e Earthquake, c FilterCriteria, search string) bool {
	if c.MinMagnitude != nil && (e.Magnitude == nil || *e.Magnitude < *c.MinMagnitude) {
		return false
	}
	if c.MaxMagnitude != nil && (e.Magnitude == nil || *e.Magnitude > *c.MaxMagnitude) {
		return false
	}
	if c.StartTime != nil && e.Time < *c.StartTime {
		return false
	}
	if c.EndTime != nil && e.Time > *c.EndTime {
		return false
	}
	if search != "" && !strings.Contains(strings.ToLower(e.Place), search) {
		return false
	}
	if c.Center != nil && c.RadiusKm != nil {
		if DistanceKm(c.Center.Latitude, c.Center.Longitude, e.Latitude, e.Longitude) > *c.RadiusKm {
			return false
		}
	}
	return true
}

// Sort returns a stably sorted copy of events. Events whose sort value is
// unknown always land at the end, whatever the order.
func Sort(events []Earthquake, key SortKey, order SortOrder) []Earthquake {
	sorted := slices.Clone(events)
	if sorted == nil {
		sorted = []Earthquake{}
	}
	value := sortValue(key)
	slices.SortStableFunc(sorted, func(a, b Earthquake) int {
		av, aok := value(a)
		bv, bok := value(b)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		if order == OrderAsc {
			return cmp.Compare(av, bv)
		}
		return cmp.Compare(bv, av)
	})
	return sorted
}

func sortValue(key SortKey) func(Earthquake) (float64, bool) {
	switch key {
	case SortByMagnitude:
		return func(e Earthquake) (float64, bool) {
			if e.Magnitude == nil {
				return 0, false
			}
			return *e.Magnitude, true
		}
	case SortByDepth:
		return func(e Earthquake) (float64, bool) {
			if e.Depth == nil {
				return 0, false
			}
			return *e.Depth, true
		}
	default:
		return func(e Earthquake) (float64, bool) {
			return float64(e.Time), true
		}
	}
}

// Apply filters and then sorts by the criteria's key and order.
func Apply(events []Earthquake, c FilterCriteria) []Earthquake {
	key := c.SortBy
	if key == "" {
		key = SortByTime
	}
	order := c.Order
	if order == "" {
		order = OrderDesc
	}
	return Sort(Filter(events, c), key, order)
}

// Page is one slice of a paginated list.
type Page struct {
	Items      []Earthquake `json:"items"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	TotalItems int          `json:"total_items"`
	HasMore    bool         `json:"has_more"`
}

// Paginate returns the 1-based page of events. Pages past the end are empty.
func Paginate(events []Earthquake, page, size int) Page {
	if size <= 0 {
		size = 20
	}
	if page < 1 {
		page = 1
	}
	total := len(events)
	p := Page{
		Items:      []Earthquake{},
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
		TotalItems: total,
	}
	start := (page - 1) * size
	if start >= total {
		return p
	}
	end := min(start+size, total)
	p.Items = slices.Clone(events[start:end])
	p.HasMore = end < total
	return p
}
