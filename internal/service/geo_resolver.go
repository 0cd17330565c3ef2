package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/locator"
)

// LocationStatus is the outcome of a device geolocation request
type LocationStatus string

const (
	LocationOK                  LocationStatus = "ok"
	LocationPermissionDenied    LocationStatus = "permission_denied"
	LocationPositionUnavailable LocationStatus = "position_unavailable"
	LocationTimeout             LocationStatus = "timeout"
	LocationUnknown             LocationStatus = "unknown"
	LocationUnsupported         LocationStatus = "unsupported"
)

// DeviceLocation is the result of DetectDevice
type DeviceLocation struct {
	Status    LocationStatus `json:"status"`
	Latitude  float64        `json:"latitude,omitempty"`
	Longitude float64        `json:"longitude,omitempty"`
	Message   string         `json:"message"`
}

// AddressStatus is the outcome of an address search
type AddressStatus string

const (
	AddressNoQuery  AddressStatus = "no_query"
	AddressFound    AddressStatus = "ok"
	AddressNotFound AddressStatus = "not_found"
	AddressFailed   AddressStatus = "failed"
)

// AddressResult is the result of ResolveAddress
type AddressResult struct {
	Status      AddressStatus `json:"status"`
	Latitude    float64       `json:"latitude,omitempty"`
	Longitude   float64       `json:"longitude,omitempty"`
	DisplayName string        `json:"display_name,omitempty"`
	Message     string        `json:"message,omitempty"`
	Cached      bool          `json:"cached,omitempty"`
}

const searchTimeout = 10 * time.Second

// GeoResolver turns device fixes and free-text addresses into coordinates
type GeoResolver struct {
	locator     locator.DeviceLocator
	geocoderURL string
	userAgent   string
	httpClient  *http.Client
	repo        DataRepository

	group singleflight.Group
}

// NewGeoResolver creates a resolver. A nil locator makes device detection
// unsupported. A nil repo disables the geocode cache.
func NewGeoResolver(loc locator.DeviceLocator, geocoderURL, userAgent string, repo DataRepository) *GeoResolver {
	return &GeoResolver{
		locator:     loc,
		geocoderURL: strings.TrimRight(geocoderURL, "/"),
		userAgent:   userAgent,
		httpClient: &http.Client{
			Timeout: searchTimeout,
		},
		repo: repo,
	}
}

// DetectDevice asks the device locator for a fresh high-accuracy fix. It
// never fails: the outcome is carried in Status.
func (r *GeoResolver) DetectDevice(ctx context.Context) DeviceLocation {
	if r.locator == nil {
		return DeviceLocation{
			Status:  LocationUnsupported,
			Message: "Geolocation is not supported by this device",
		}
	}

	p, err := r.locator.CurrentPosition(ctx, locator.DefaultOptions())
	if err == nil && !domain.ValidLatLon(p.Latitude, p.Longitude) {
		err = &locator.PositionError{Code: locator.PositionUnavailable, Message: "invalid coordinates"}
	}
	if err == nil {
		return DeviceLocation{
			Status:    LocationOK,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Message:   "Position detected successfully",
		}
	}

	log.Printf("[geo] device location failed: %v", err)
	var perr *locator.PositionError
	if !errors.As(err, &perr) {
		return DeviceLocation{Status: LocationUnknown, Message: "An unknown error occurred during geolocation"}
	}
	switch perr.Code {
	case locator.PermissionDenied:
		return DeviceLocation{Status: LocationPermissionDenied, Message: "You denied the geolocation request"}
	case locator.PositionUnavailable:
		return DeviceLocation{Status: LocationPositionUnavailable, Message: "Location information is unavailable"}
	case locator.Timeout:
		return DeviceLocation{Status: LocationTimeout, Message: "The location request timed out"}
	default:
		return DeviceLocation{Status: LocationUnknown, Message: "An unknown error occurred during geolocation"}
	}
}

// ResolveAddress geocodes text to its best match. Blank text returns
// AddressNoQuery without any lookup.
func (r *GeoResolver) ResolveAddress(ctx context.Context, text string) AddressResult {
	query := strings.TrimSpace(text)
	if query == "" {
		return AddressResult{Status: AddressNoQuery}
	}
	key := strings.ToLower(query)

	if r.repo != nil {
		cached, ok, err := r.repo.GetGeocode(ctx, key)
		if err != nil {
			log.Printf("[geo] geocode cache lookup failed: %v", err)
		} else if ok {
			return found(cached, true)
		}
	}

	// Callers joining the flight share its result, so it must outlive
	// the caller that started it.
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), searchTimeout)
		defer cancel()
		return r.search(searchCtx, query)
	})
	if err != nil {
		log.Printf("[geo] address search %q failed: %v", query, err)
		return AddressResult{Status: AddressFailed, Message: "Error while searching for the address"}
	}
	result, _ := v.(*domain.GeocodeResult)
	if result == nil {
		return AddressResult{Status: AddressNotFound, Message: "No result found for this address"}
	}

	if r.repo != nil {
		if err := r.repo.SaveGeocode(ctx, key, *result); err != nil {
			log.Printf("[geo] failed to cache geocode: %v", err)
		}
	}
	return found(*result, false)
}

func found(g domain.GeocodeResult, cached bool) AddressResult {
	return AddressResult{
		Status:      AddressFound,
		Latitude:    g.Latitude,
		Longitude:   g.Longitude,
		DisplayName: g.DisplayName,
		Message:     "Address found: " + g.DisplayName,
		Cached:      cached,
	}
}

// nominatimPlace is one entry of a Nominatim search response
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// search returns nil without error when nothing matches
func (r *GeoResolver) search(ctx context.Context, query string) (*domain.GeocodeResult, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "1")

	u := fmt.Sprintf("%s/search?%s", r.geocoderURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("geo: failed to create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo: geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo: geocoder returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("geo: failed to decode response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLon != nil || !domain.ValidLatLon(lat, lon) {
		return nil, fmt.Errorf("geo: invalid coordinates %q, %q", places[0].Lat, places[0].Lon)
	}
	return &domain.GeocodeResult{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: places[0].DisplayName,
	}, nil
}
