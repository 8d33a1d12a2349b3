package domain

import (
	"context"
	"math"
)

// Location sources.
const (
	LocationSourceDevice  = "device"
	LocationSourceSaved   = "saved"
	LocationSourceDefault = "default"
)

// Location is the single current position the dashboard is centred on.
type Location struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Name      string   `json:"city"`
	Country   string   `json:"country,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// DefaultLocation is the hardcoded last-resort fallback.
var DefaultLocation = Location{
	Latitude:  11.6643,
	Longitude: 78.146,
	Name:      "Salem, Tamil Nadu",
	Country:   "India",
	Source:    LocationSourceDefault,
}

// UnnamedLocation is the placeholder name for a position nobody has named.
const UnnamedLocation = "Your Location"

// Named reports whether the location carries a real place name.
func (l Location) Named() bool {
	return l.Name != "" && l.Name != UnnamedLocation
}

// Place is a reverse-geocoded name for a coordinate pair.
type Place struct {
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// Geocoder names coordinates. An empty Place with a nil error means the
// lookup found nothing.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}

// Locator provides the device position.
type Locator interface {
	// Locate returns the current position or one of the location package's
	// sentinel errors (permission denied, unavailable, timeout).
	Locate(ctx context.Context) (Location, error)
}

// ValidCoordinates reports whether lat/lon are finite and inside WGS-84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

const earthRadiusKm = 6371

// DistanceKm returns the haversine great-circle distance between two points,
// rounded to the nearest whole kilometre.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(earthRadiusKm * c)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
