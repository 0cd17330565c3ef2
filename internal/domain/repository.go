package domain

import (
	"context"
	"time"
)

// GeocodeResult is a resolved address
type GeocodeResult struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// QueryLogEntry records where a view was pointed and why
type QueryLogEntry struct {
	ViewID    string        `json:"view_id"`
	Query     LocationQuery `json:"query"`
	Source    string        `json:"source"` // "click", "input", "device", "search"
	Timestamp time.Time     `json:"timestamp"`
}

// DataRepository defines the interface for data persistence
// This follows the Dependency Inversion Principle - domain defines the interface
type DataRepository interface {
	// GetGeocode returns a cached address lookup, ok=false on a miss
	GetGeocode(ctx context.Context, query string) (GeocodeResult, bool, error)

	// SaveGeocode caches an address lookup
	SaveGeocode(ctx context.Context, query string, result GeocodeResult) error

	// SaveQueryLog persists a location change of a view
	SaveQueryLog(ctx context.Context, entry QueryLogEntry) error

	// RecentQueries returns the latest location changes, newest first
	RecentQueries(ctx context.Context, limit int) ([]QueryLogEntry, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
