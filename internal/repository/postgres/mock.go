package postgres

import (
	"context"
	"sort"
	"sync"

	"github.com/roadwatch/console/internal/domain"
)

const maxMockQueries = 1000

// MockRepository implements domain.DataRepository in memory for
// testing/demo mode
type MockRepository struct {
	mu       sync.RWMutex
	geocodes map[string]domain.GeocodeResult
	queries  []domain.QueryLogEntry
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		geocodes: make(map[string]domain.GeocodeResult),
	}
}

// GetGeocode returns a geocode saved earlier in this process
func (r *MockRepository) GetGeocode(ctx context.Context, query string) (domain.GeocodeResult, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.geocodes[query]
	return g, ok, nil
}

// SaveGeocode keeps the geocode in memory
func (r *MockRepository) SaveGeocode(ctx context.Context, query string, result domain.GeocodeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.geocodes[query] = result
	return nil
}

// SaveQueryLog keeps the most recent entries in memory
func (r *MockRepository) SaveQueryLog(ctx context.Context, entry domain.QueryLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, entry)
	if len(r.queries) > maxMockQueries {
		r.queries = r.queries[len(r.queries)-maxMockQueries:]
	}
	return nil
}

// RecentQueries returns up to limit entries, newest first
func (r *MockRepository) RecentQueries(ctx context.Context, limit int) ([]domain.QueryLogEntry, error) {
	r.mu.RLock()
	out := append([]domain.QueryLogEntry(nil), r.queries...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.QueryLogEntry{}
	}
	return out, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
