// Package spatial indexes incident reports with an R-Tree so a view can
// answer radius and nearest queries around its current location.
package spatial

import (
	"fmt"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/pkg/utils"
)

const (
	tolerance   = 1e-6
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// item wraps a record for R-Tree indexing
type item struct {
	record domain.IncidentRecord
	lat    float64
	lon    float64
	rect   rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect {
	return it.rect
}

// IncidentIndex is a thread-safe R-Tree over one incident snapshot
type IncidentIndex struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	count int
}

// NewIncidentIndex indexes the records that have valid coordinates
func NewIncidentIndex(records []domain.IncidentRecord) *IncidentIndex {
	idx := &IncidentIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	idx.Replace(records)
	return idx
}

// Replace swaps the indexed snapshot
func (idx *IncidentIndex) Replace(records []domain.IncidentRecord) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	count := 0
	for _, r := range records {
		lat, lon, ok := r.LatLon()
		if !ok {
			continue
		}
		tree.Insert(&item{
			record: r,
			lat:    lat,
			lon:    lon,
			rect:   rtreego.Point{lat, lon}.ToRect(tolerance),
		})
		count++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree = tree
	idx.count = count
}

// Size returns the number of indexed records
func (idx *IncidentIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count
}

// WithinRadius returns the records within radiusMeters of lat/lon
func (idx *IncidentIndex) WithinRadius(lat, lon float64, radiusMeters int) ([]domain.IncidentRecord, error) {
	if !domain.ValidLatLon(lat, lon) {
		return nil, fmt.Errorf("spatial: invalid center (%f, %f)", lat, lon)
	}
	radiusKm := float64(radiusMeters) / 1000

	// Convert radius to degrees; longitude degrees shrink with latitude
	latDeg := (radiusKm / earthRadius) * (180 / math.Pi)
	lonDeg := latDeg / math.Max(math.Cos(lat*math.Pi/180), 0.01)

	bounds, err := rtreego.NewRect(
		rtreego.Point{lat - latDeg, lon - lonDeg},
		[]float64{2 * latDeg, 2 * lonDeg},
	)
	if err != nil {
		return nil, fmt.Errorf("spatial: invalid radius search: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := idx.tree.SearchIntersect(bounds)
	out := make([]domain.IncidentRecord, 0, len(results))
	for _, res := range results {
		it, ok := res.(*item)
		if !ok {
			continue
		}
		if utils.DistanceKm(lat, lon, it.lat, it.lon) <= radiusKm {
			out = append(out, it.record)
		}
	}
	return out, nil
}

// Nearest returns up to n records closest to lat/lon
func (idx *IncidentIndex) Nearest(lat, lon float64, n int) []domain.IncidentRecord {
	if n <= 0 {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := idx.tree.NearestNeighbors(n, rtreego.Point{lat, lon})
	out := make([]domain.IncidentRecord, 0, len(results))
	for _, res := range results {
		if it, ok := res.(*item); ok {
			out = append(out, it.record)
		}
	}
	return out
}
