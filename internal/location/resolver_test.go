package location

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocator struct {
	loc   domain.Location
	err   error
	block bool
}

func (s stubLocator) Locate(ctx context.Context) (domain.Location, error) {
	if s.block {
		<-ctx.Done()
		return domain.Location{}, ctx.Err()
	}
	return s.loc, s.err
}

// memStore is an in-memory Store that round-trips values through JSON.
type memStore struct {
	data  map[string][]byte
	saves int
	err   error
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Save(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.saves++
	m.data[key] = raw
	return nil
}

func (m *memStore) Load(_ context.Context, key string, dst any) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var tokyo = domain.Location{Latitude: 35.68, Longitude: 139.69, Name: "Tokyo"}

func TestResolve_DeviceSuccessIsPersisted(t *testing.T) {
	store := newMemStore()
	r := NewResolver(stubLocator{loc: tokyo}, store, discardLogger())

	loc, msg := r.Resolve(context.Background())
	assert.Empty(t, msg)
	assert.Equal(t, "Tokyo", loc.Name)
	assert.Equal(t, domain.LocationSourceDevice, loc.Source)
	assert.Equal(t, 1, store.saves)
}

func TestResolve_FallsBackToSaved(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), domain.PrefLocation, tokyo))
	r := NewResolver(stubLocator{err: ErrPermissionDenied}, store, discardLogger())

	loc, msg := r.Resolve(context.Background())
	assert.Equal(t, MsgPermissionDenied, msg)
	assert.Equal(t, "Tokyo", loc.Name)
	assert.Equal(t, domain.LocationSourceSaved, loc.Source)
}

func TestResolve_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"denied", ErrPermissionDenied, MsgPermissionDenied},
		{"unavailable", ErrUnavailable, MsgUnavailable},
		{"timeout", ErrTimeout, MsgTimeout},
		{"other", errors.New("gps on fire"), MsgUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(stubLocator{err: tt.err}, newMemStore(), discardLogger())
			loc, msg := r.Resolve(context.Background())
			assert.Equal(t, tt.want, msg)
			assert.Equal(t, domain.DefaultLocation, loc)
		})
	}
}

func TestResolve_LocatorTimeout(t *testing.T) {
	r := NewResolver(stubLocator{block: true}, nil, discardLogger())
	r.timeout = 10 * time.Millisecond

	loc, msg := r.Resolve(context.Background())
	assert.Equal(t, MsgTimeout, msg)
	assert.Equal(t, domain.DefaultLocation, loc)
}

func TestResolve_InvalidDeviceCoordinates(t *testing.T) {
	r := NewResolver(stubLocator{loc: domain.Location{Latitude: 120}}, nil, discardLogger())

	loc, msg := r.Resolve(context.Background())
	assert.Equal(t, MsgUnavailable, msg)
	assert.Equal(t, domain.DefaultLocation, loc)
}

func TestResolve_NoLocatorUsesSaved(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), domain.PrefLocation, tokyo))
	r := NewResolver(nil, store, discardLogger())

	loc, msg := r.Resolve(context.Background())
	assert.Empty(t, msg)
	assert.Equal(t, domain.LocationSourceSaved, loc.Source)
}

func TestResolve_CorruptSavedLocationIgnored(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("decode preference: bad json")
	r := NewResolver(nil, store, discardLogger())

	loc, _ := r.Resolve(context.Background())
	assert.Equal(t, domain.DefaultLocation, loc)
}

func TestSet(t *testing.T) {
	store := newMemStore()
	r := NewResolver(nil, store, discardLogger())

	loc, err := r.Set(context.Background(), tokyo)
	require.NoError(t, err)
	assert.Equal(t, domain.LocationSourceSaved, loc.Source)
	assert.Equal(t, 1, store.saves)

	_, err = r.Set(context.Background(), domain.Location{Latitude: 91})
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
}

type stubGeocoder struct {
	place domain.Place
	err   error
	calls int
}

func (s *stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.Place, error) {
	s.calls++
	return s.place, s.err
}

func TestResolve_NamesUnnamedDeviceLocation(t *testing.T) {
	geo := &stubGeocoder{place: domain.Place{Name: "Tokyo", Country: "Japan"}}
	store := newMemStore()
	unnamed := domain.Location{Latitude: 35.68, Longitude: 139.69, Name: domain.UnnamedLocation}
	r := NewResolver(stubLocator{loc: unnamed}, store, discardLogger()).WithGeocoder(geo)

	loc, msg := r.Resolve(context.Background())
	assert.Empty(t, msg)
	assert.Equal(t, "Tokyo", loc.Name)
	assert.Equal(t, "Japan", loc.Country)

	var saved domain.Location
	ok, err := store.Load(context.Background(), domain.PrefLocation, &saved)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", saved.Name, "named location is persisted")
}

func TestSet_NamedLocationSkipsGeocoder(t *testing.T) {
	geo := &stubGeocoder{place: domain.Place{Name: "Elsewhere"}}
	r := NewResolver(nil, newMemStore(), discardLogger()).WithGeocoder(geo)

	loc, err := r.Set(context.Background(), tokyo)
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", loc.Name)
	assert.Zero(t, geo.calls)
}

func TestSet_GeocoderFailureKeepsLocation(t *testing.T) {
	geo := &stubGeocoder{err: errors.New("mapbox down")}
	r := NewResolver(nil, newMemStore(), discardLogger()).WithGeocoder(geo)

	loc, err := r.Set(context.Background(), domain.Location{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Empty(t, loc.Name)
	assert.Equal(t, 1, geo.calls)
}

func TestNewStaticLocator(t *testing.T) {
	assert.Nil(t, NewStaticLocator(&config.Config{}))

	l := NewStaticLocator(&config.Config{HomeSet: true, HomeLat: 1.5, HomeLon: 2.5, HomeName: "Home"})
	require.NotNil(t, l)
	loc, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.5, loc.Latitude)
	assert.Equal(t, "Home", loc.Name)
}
