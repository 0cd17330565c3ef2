// Package locator provides the device position used by "detect my location".
package locator

import (
	"context"
	"fmt"
	"time"
)

// ErrorCode mirrors the failure codes of a browser geolocation request
type ErrorCode string

const (
	PermissionDenied    ErrorCode = "PERMISSION_DENIED"
	PositionUnavailable ErrorCode = "POSITION_UNAVAILABLE"
	Timeout             ErrorCode = "TIMEOUT"
)

// PositionError is returned by a DeviceLocator that could not produce a fix
type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("locator: %s", e.Code)
	}
	return fmt.Sprintf("locator: %s: %s", e.Code, e.Message)
}

// PositionOptions tune a position request
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is how old a cached fix may be. Zero requires a fresh one.
	MaximumAge time.Duration
}

// DefaultOptions are the options used by "detect my location"
func DefaultOptions() PositionOptions {
	return PositionOptions{
		HighAccuracy: true,
		Timeout:      5 * time.Second,
		MaximumAge:   0,
	}
}

// Position is one device fix
type Position struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceLocator produces the current device position
type DeviceLocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
}

// StaticLocator always reports the same position
type StaticLocator struct {
	Latitude  float64
	Longitude float64
}

func (s StaticLocator) CurrentPosition(ctx context.Context, _ PositionOptions) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	return Position{
		DeviceID:  "static",
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Timestamp: time.Now(),
	}, nil
}
