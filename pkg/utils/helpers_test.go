package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	assert.Zero(t, DistanceKm(48.85, 2.35, 48.85, 2.35))
	// Paris to Lyon
	assert.InDelta(t, 392, DistanceKm(48.8566, 2.3522, 45.7640, 4.8357), 3)
	assert.InDelta(t, DistanceKm(48.8566, 2.3522, 45.7640, 4.8357), DistanceKm(45.7640, 4.8357, 48.8566, 2.3522), 1e-9)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{42.4567, 42.46},
		{-3, 0},
		{100.5, 100},
		{0.004, 0},
		{math.NaN(), 0},
		{math.Inf(1), 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.in), "%v", tt.in)
	}
}
