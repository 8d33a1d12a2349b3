package location

import (
	"context"

	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

// StaticLocator reports a fixed position, standing in for a device fix.
type StaticLocator struct {
	loc domain.Location
}

// NewStaticLocator builds a locator from HOME_LAT/HOME_LON. It returns nil
// when no home position is configured.
func NewStaticLocator(cfg *config.Config) *StaticLocator {
	if !cfg.HomeSet {
		return nil
	}
	return &StaticLocator{loc: domain.Location{
		Latitude:  cfg.HomeLat,
		Longitude: cfg.HomeLon,
		Name:      cfg.HomeName,
	}}
}

func (s *StaticLocator) Locate(ctx context.Context) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, err
	}
	return s.loc, nil
}
