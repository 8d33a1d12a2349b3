// Package location resolves the dashboard's current position, falling back
// from the device to the last saved position to a fixed default.
package location

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrTimeout          = errors.New("location request timed out")
)

// User-facing messages for each locator failure.
const (
	MsgPermissionDenied = "Location access denied. Using default location."
	MsgUnavailable      = "Location service unavailable. Using default location."
	MsgTimeout          = "Location request timed out. Using default location."
)

// DefaultTimeout bounds a single device lookup.
const DefaultTimeout = 10 * time.Second

// Store persists the last known location.
type Store interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context, key string, dst any) (bool, error)
}

// Resolver picks the current location. It never fails: the worst case is
// domain.DefaultLocation with a message explaining why.
type Resolver struct {
	locator  domain.Locator
	store    Store
	geocoder domain.Geocoder
	validate *validator.Validate
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResolver creates a resolver. locator and store may be nil.
func NewResolver(locator domain.Locator, store Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		locator:  locator,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  DefaultTimeout,
		logger:   logger,
	}
}

// WithGeocoder names unnamed locations through g before they are stored.
func (r *Resolver) WithGeocoder(g domain.Geocoder) *Resolver {
	r.geocoder = g
	return r
}

// Resolve returns the device location when available, else the saved one,
// else the default. The message is empty on device success.
func (r *Resolver) Resolve(ctx context.Context) (domain.Location, string) {
	if r.locator != nil {
		loc, err := r.locate(ctx)
		if err == nil {
			loc = r.name(ctx, loc)
			loc.Source = domain.LocationSourceDevice
			r.save(ctx, loc)
			return loc, ""
		}
		msg := Message(err)
		r.logger.Warn("device location failed", "error", err)
		if saved, ok := r.saved(ctx); ok {
			return saved, msg
		}
		return domain.DefaultLocation, msg
	}

	if saved, ok := r.saved(ctx); ok {
		return saved, ""
	}
	return domain.DefaultLocation, MsgUnavailable
}

// Set validates and persists a location chosen by the user.
func (r *Resolver) Set(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if err := r.validate.Struct(loc); err != nil || !domain.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return domain.Location{}, domain.ErrInvalidCoordinates
	}
	loc = r.name(ctx, loc)
	loc.Source = domain.LocationSourceSaved
	r.save(ctx, loc)
	return loc, nil
}

func (r *Resolver) locate(ctx context.Context) (domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.locator.Locate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Location{}, errors.Join(ErrTimeout, err)
		}
		return domain.Location{}, err
	}
	if err := r.validate.Struct(loc); err != nil || !domain.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return domain.Location{}, errors.Join(ErrUnavailable, domain.ErrInvalidCoordinates)
	}
	return loc, nil
}

func (r *Resolver) name(ctx context.Context, loc domain.Location) domain.Location {
	if r.geocoder == nil || loc.Named() {
		return loc
	}
	place, err := r.geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		r.logger.Warn("reverse geocode failed", "lat", loc.Latitude, "lon", loc.Longitude, "error", err)
		return loc
	}
	if place.Name == "" {
		return loc
	}
	loc.Name = place.Name
	if place.Country != "" {
		loc.Country = place.Country
	}
	return loc
}

func (r *Resolver) saved(ctx context.Context) (domain.Location, bool) {
	if r.store == nil {
		return domain.Location{}, false
	}
	var loc domain.Location
	ok, err := r.store.Load(ctx, domain.PrefLocation, &loc)
	if err != nil {
		r.logger.Warn("ignoring saved location", "error", err)
		return domain.Location{}, false
	}
	if !ok || !domain.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return domain.Location{}, false
	}
	loc.Source = domain.LocationSourceSaved
	return loc, true
}

func (r *Resolver) save(ctx context.Context, loc domain.Location) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, domain.PrefLocation, loc); err != nil {
		r.logger.Warn("persist location failed", "error", err)
	}
}

// Message maps a locator error to its user-facing message.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return MsgPermissionDenied
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	default:
		return MsgUnavailable
	}
}
