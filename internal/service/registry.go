package service

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/roadwatch/console/internal/domain"
)

// ViewRegistry holds the open views. Each view has its own document and
// map surface, so views never share a handle.
type ViewRegistry struct {
	reports ReportSource
	geo     *GeoResolver
	repo    DataRepository
	opts    ViewOptions

	mu    sync.RWMutex
	views map[uuid.UUID]*PredictionsView
}

// NewViewRegistry creates an empty registry
func NewViewRegistry(reports ReportSource, geo *GeoResolver, repo DataRepository, opts ViewOptions) *ViewRegistry {
	return &ViewRegistry{
		reports: reports,
		geo:     geo,
		repo:    repo,
		opts:    opts,
		views:   make(map[uuid.UUID]*PredictionsView),
	}
}

// Create opens a new view
func (r *ViewRegistry) Create() *PredictionsView {
	v := NewPredictionsView(r.reports, r.geo, r.repo, r.opts)

	r.mu.Lock()
	r.views[v.ID] = v
	r.mu.Unlock()

	log.Printf("[views] view %s opened", v.ID)
	return v
}

// Get returns the view with the given id
func (r *ViewRegistry) Get(id string) (*PredictionsView, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrViewNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[key]
	if !ok {
		return nil, domain.ErrViewNotFound
	}
	return v, nil
}

// Release closes and forgets a view
func (r *ViewRegistry) Release(id string) error {
	key, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrViewNotFound
	}
	r.mu.Lock()
	v, ok := r.views[key]
	delete(r.views, key)
	r.mu.Unlock()
	if !ok {
		return domain.ErrViewNotFound
	}
	v.Close()
	return nil
}

// Len returns the number of open views
func (r *ViewRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// Close releases every view. Call during graceful shutdown.
func (r *ViewRegistry) Close() {
	r.mu.Lock()
	views := make([]*PredictionsView, 0, len(r.views))
	for id, v := range r.views {
		views = append(views, v)
		delete(r.views, id)
	}
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
