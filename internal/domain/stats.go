package domain

// Severity is the dashboard's three-level magnitude bucket.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Magnitude thresholds shared by severity classification and the histogram.
const (
	ModerateMagnitude = 4.5
	StrongMagnitude   = 6.0
)

// ClassifySeverity buckets a magnitude: low < 4.5 <= medium < 6.0 <= high.
func ClassifySeverity(mag float64) Severity {
	switch {
	case mag >= StrongMagnitude:
		return SeverityHigh
	case mag >= ModerateMagnitude:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityCounts is the severity histogram.
type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Stats aggregates a list of earthquakes.
type Stats struct {
	Total            int            `json:"total"`
	MaxMagnitude     float64        `json:"max_magnitude"`
	MinMagnitude     float64        `json:"min_magnitude"`
	AverageMagnitude float64        `json:"average_magnitude"`
	MaxDepth         float64        `json:"max_depth"`
	MinDepth         float64        `json:"min_depth"`
	AverageDepth     float64        `json:"average_depth"`
	BySeverity       SeverityCounts `json:"by_severity"`
}

// ComputeStats aggregates events. Unknown magnitudes and depths are left out
// of their aggregates; an unknown magnitude counts as low severity. Empty
// input yields all-zero stats.
func ComputeStats(events []Earthquake) Stats {
	s := Stats{Total: len(events)}
	if len(events) == 0 {
		return s
	}

	var magSum, depthSum float64
	var magN, depthN int
	for _, e := range events {
		if e.Magnitude != nil {
			m := *e.Magnitude
			if magN == 0 || m > s.MaxMagnitude {
				s.MaxMagnitude = m
			}
			if magN == 0 || m < s.MinMagnitude {
				s.MinMagnitude = m
			}
			magSum += m
			magN++
		}
		if e.Depth != nil {
			d := *e.Depth
			if depthN == 0 || d > s.MaxDepth {
				s.MaxDepth = d
			}
			if depthN == 0 || d < s.MinDepth {
				s.MinDepth = d
			}
			depthSum += d
			depthN++
		}

		switch ClassifySeverity(e.MagnitudeOr(0)) {
		case SeverityHigh:
			s.BySeverity.High++
		case SeverityMedium:
			s.BySeverity.Medium++
		default:
			s.BySeverity.Low++
		}
	}

	if magN > 0 {
		s.AverageMagnitude = magSum / float64(magN)
	}
	if depthN > 0 {
		s.AverageDepth = depthSum / float64(depthN)
	}
	return s
}

// Peak returns the highest-magnitude event. Ties keep the first one seen.
// The bool is false for empty input.
func Peak(events []Earthquake) (Earthquake, bool) {
	if len(events) == 0 {
		return Earthquake{}, false
	}
	peak := events[0]
	for _, e := range events[1:] {
		if e.Magnitude == nil {
			continue
		}
		if peak.Magnitude == nil || *e.Magnitude > *peak.Magnitude {
			peak = e
		}
	}
	return peak, true
}
