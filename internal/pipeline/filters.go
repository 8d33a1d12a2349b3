package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidFilters wraps every filter validation failure.
var ErrInvalidFilters = errors.New("invalid filters")

type filterValidator struct {
	v *validator.Validate
}

func newFilterValidator() *filterValidator {
	return &filterValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// normalize fills unset sort and timeframe fields from current.
func normalize(c domain.FilterCriteria, current domain.Timeframe) domain.FilterCriteria {
	if c.SortBy == "" {
		c.SortBy = domain.SortByTime
	}
	if c.Order == "" {
		c.Order = domain.OrderDesc
	}
	if c.Timeframe == "" {
		c.Timeframe = current
	}
	return c
}

func (f *filterValidator) validate(c domain.FilterCriteria) error {
	if err := f.v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilters, err)
	}
	if c.MinMagnitude != nil && c.MaxMagnitude != nil && *c.MinMagnitude > *c.MaxMagnitude {
		return fmt.Errorf("%w: min_magnitude exceeds max_magnitude", ErrInvalidFilters)
	}
	if c.StartTime != nil && c.EndTime != nil && *c.StartTime > *c.EndTime {
		return fmt.Errorf("%w: start_time is after end_time", ErrInvalidFilters)
	}
	if (c.Center == nil) != (c.RadiusKm == nil) {
		return fmt.Errorf("%w: center and radius_km must be set together", ErrInvalidFilters)
	}
	return nil
}
