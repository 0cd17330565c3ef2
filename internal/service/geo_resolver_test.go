package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/console/internal/locator"
	"github.com/roadwatch/console/internal/repository/postgres"
)

type failingLocator struct{ err error }

func (f failingLocator) CurrentPosition(ctx context.Context, opts locator.PositionOptions) (locator.Position, error) {
	return locator.Position{}, f.err
}

// optionsRecorder captures the options of a position request
type optionsRecorder struct{ opts locator.PositionOptions }

func (o *optionsRecorder) CurrentPosition(ctx context.Context, opts locator.PositionOptions) (locator.Position, error) {
	o.opts = opts
	return locator.Position{Latitude: 10, Longitude: 20}, nil
}

func TestDetectDeviceClassifiesFailures(t *testing.T) {
	cases := []struct {
		err    error
		status LocationStatus
	}{
		{&locator.PositionError{Code: locator.PermissionDenied}, LocationPermissionDenied},
		{&locator.PositionError{Code: locator.PositionUnavailable}, LocationPositionUnavailable},
		{&locator.PositionError{Code: locator.Timeout}, LocationTimeout},
		{&locator.PositionError{Code: "WEIRD"}, LocationUnknown},
		{errors.New("boom"), LocationUnknown},
	}
	for _, tc := range cases {
		res := NewGeoResolver(failingLocator{tc.err}, "", "", nil).DetectDevice(context.Background())
		assert.Equal(t, tc.status, res.Status, tc.err.Error())
		assert.NotEmpty(t, res.Message)
	}
}

func TestDetectDeviceUsesHighAccuracyNoCache(t *testing.T) {
	rec := &optionsRecorder{}
	res := NewGeoResolver(rec, "", "", nil).DetectDevice(context.Background())

	assert.Equal(t, LocationOK, res.Status)
	assert.Equal(t, 10.0, res.Latitude)
	assert.True(t, rec.opts.HighAccuracy)
	assert.Equal(t, "5s", rec.opts.Timeout.String())
	assert.Zero(t, rec.opts.MaximumAge)
}

func TestDetectDeviceRejectsInvalidFix(t *testing.T) {
	res := NewGeoResolver(locator.StaticLocator{Latitude: 100, Longitude: 0}, "", "", nil).DetectDevice(context.Background())
	assert.Equal(t, LocationPositionUnavailable, res.Status)
}

func nominatim(t *testing.T, body string, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "roadwatch-test", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolveAddressEmptyMakesNoRequest(t *testing.T) {
	srv, hits := nominatim(t, `[]`, http.StatusOK)
	r := NewGeoResolver(nil, srv.URL, "roadwatch-test", nil)

	for _, q := range []string{"", "  ", "\t\n"} {
		assert.Equal(t, AddressNoQuery, r.ResolveAddress(context.Background(), q).Status)
	}
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestResolveAddressFound(t *testing.T) {
	srv, _ := nominatim(t, `[{"lat":"48.8583701","lon":"2.2944813","display_name":"Tour Eiffel, Paris"}]`, http.StatusOK)
	res := NewGeoResolver(nil, srv.URL, "roadwatch-test", nil).ResolveAddress(context.Background(), " Tour Eiffel ")

	require.Equal(t, AddressFound, res.Status)
	assert.Equal(t, 48.8583701, res.Latitude)
	assert.Equal(t, 2.2944813, res.Longitude)
	assert.Equal(t, "Tour Eiffel, Paris", res.DisplayName)
	assert.Equal(t, "Address found: Tour Eiffel, Paris", res.Message)
}

func TestResolveAddressNotFoundAndFailed(t *testing.T) {
	srv, _ := nominatim(t, `[]`, http.StatusOK)
	res := NewGeoResolver(nil, srv.URL, "roadwatch-test", nil).ResolveAddress(context.Background(), "nowhere")
	assert.Equal(t, AddressNotFound, res.Status)

	srv, _ = nominatim(t, `rate limited`, http.StatusTooManyRequests)
	res = NewGeoResolver(nil, srv.URL, "roadwatch-test", nil).ResolveAddress(context.Background(), "paris")
	assert.Equal(t, AddressFailed, res.Status)

	srv, _ = nominatim(t, `[{"lat":"north","lon":"2","display_name":"?"}]`, http.StatusOK)
	res = NewGeoResolver(nil, srv.URL, "roadwatch-test", nil).ResolveAddress(context.Background(), "paris")
	assert.Equal(t, AddressFailed, res.Status)
}

func TestResolveAddressUsesCache(t *testing.T) {
	srv, hits := nominatim(t, `[{"lat":"45.76","lon":"4.83","display_name":"Lyon"}]`, http.StatusOK)
	r := NewGeoResolver(nil, srv.URL, "roadwatch-test", postgres.NewMockRepository())

	first := r.ResolveAddress(context.Background(), "Lyon")
	second := r.ResolveAddress(context.Background(), "lyon")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Latitude, second.Latitude)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestResolveAddressSharedSearchSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			close(started)
		}
		<-release
		_, _ = w.Write([]byte(`[{"lat":"43.3","lon":"5.37","display_name":"Marseille"}]`))
	}))
	defer srv.Close()
	r := NewGeoResolver(nil, srv.URL, "roadwatch-test", nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan AddressResult, 1)
	go func() { firstDone <- r.ResolveAddress(ctx, "Marseille") }()
	<-started

	secondDone := make(chan AddressResult, 1)
	go func() { secondDone <- r.ResolveAddress(context.Background(), "marseille") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(release)

	assert.Equal(t, AddressFound, (<-secondDone).Status)
	assert.Equal(t, AddressFound, (<-firstDone).Status)
}

func TestResolveAddressIgnoresCanceledCaller(t *testing.T) {
	srv, _ := nominatim(t, `[{"lat":"45.76","lon":"4.83","display_name":"Lyon"}]`, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewGeoResolver(nil, srv.URL, "roadwatch-test", nil).ResolveAddress(ctx, "Lyon")
	assert.Equal(t, AddressFound, res.Status)
}
