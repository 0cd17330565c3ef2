package domain

import (
	"fmt"
	"math"
)

// Query radius limits in meters
const (
	MinRadius     = 100
	MaxRadius     = 10000
	DefaultRadius = 1000
)

// Paris is where a fresh view is centered when nothing else is configured
const (
	DefaultCenterLat = 48.8566
	DefaultCenterLon = 2.3522
)

// LocationQuery is the input to every geospatial operation of a view
type LocationQuery struct {
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Radius       int          `json:"radius"`
	IncidentType IncidentType `json:"type,omitempty"`
}

// DefaultLocationQuery returns the query a new view starts with
func DefaultLocationQuery() LocationQuery {
	return LocationQuery{
		Latitude:  DefaultCenterLat,
		Longitude: DefaultCenterLon,
		Radius:    DefaultRadius,
	}
}

// Validate checks coordinate and radius ranges
func (q LocationQuery) Validate() error {
	if !ValidLatLon(q.Latitude, q.Longitude) {
		return fmt.Errorf("location: coordinates out of range (%f, %f)", q.Latitude, q.Longitude)
	}
	if q.Radius < MinRadius || q.Radius > MaxRadius {
		return fmt.Errorf("location: radius %d outside [%d, %d]", q.Radius, MinRadius, MaxRadius)
	}
	if q.IncidentType != "" && !q.IncidentType.Known() {
		return fmt.Errorf("location: unknown incident type %q", q.IncidentType)
	}
	return nil
}

// WithPosition returns a copy of q moved to lat/lon
func (q LocationQuery) WithPosition(lat, lon float64) LocationQuery {
	q.Latitude = lat
	q.Longitude = lon
	return q
}

// ClampRadius bounds a radius to the accepted range
func ClampRadius(radius int) int {
	if radius < MinRadius {
		return MinRadius
	}
	if radius > MaxRadius {
		return MaxRadius
	}
	return radius
}

// ValidLatLon reports whether lat/lon are finite and within WGS 84 ranges
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
