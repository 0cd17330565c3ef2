package mapview

import (
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/roadwatch/console/internal/domain"
)

// Bounds fit defaults
const (
	DefaultFitDelay   = 200 * time.Millisecond
	DefaultFitPadding = 50
	DefaultFitMaxZoom = 15
)

const positionPopup = "Current position"

// SyncResult reports what a SyncIncidents call did
type SyncResult struct {
	Rendered int  `json:"rendered"`
	Skipped  int  `json:"skipped"`
	Applied  bool `json:"applied"`
}

// Reconciler is the only writer of tagged overlays on a surface. Incident
// syncs are last-write-wins: each one replaces every incident overlay, and
// cancels the pending bounds fit of the previous one.
type Reconciler struct {
	surface  *Surface
	fitDelay time.Duration
	fit      FitOptions

	mu      sync.Mutex
	loc     *time.Location
	gen     uint64
	pending *time.Timer
}

// NewReconciler creates a reconciler writing to surface
func NewReconciler(surface *Surface) *Reconciler {
	return &Reconciler{
		surface:  surface,
		fitDelay: DefaultFitDelay,
		fit:      FitOptions{PaddingPx: DefaultFitPadding, MaxZoom: DefaultFitMaxZoom},
		loc:      time.Local,
	}
}

// SetFitDelay changes how long a bounds fit waits for layout to settle
func (r *Reconciler) SetFitDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fitDelay = d
}

// SetLocation sets the time zone popups are written in
func (r *Reconciler) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loc = loc
}

// SyncIncidents replaces the incident overlays of h with one marker per
// valid record, then fits the viewport to them. Records without usable
// coordinates are skipped and logged.
func (r *Reconciler) SyncIncidents(h *Handle, records []domain.IncidentRecord) SyncResult {
	r.mu.Lock()
	loc := r.loc
	r.mu.Unlock()

	var result SyncResult
	layers := make([]Layer, 0, len(records))
	for _, rec := range records {
		lat, lon, ok := rec.LatLon()
		if !ok {
			log.Printf("[reconciler] skipping incident %q: invalid coordinates %v", rec.ID, rec.Location.Coordinates)
			result.Skipped++
			continue
		}
		style := IncidentMarkerStyle(rec.Type, rec.Occurrences())
		layers = append(layers, Layer{
			ID:       uuid.NewString(),
			Kind:     LayerMarker,
			Tag:      TagIncident,
			Position: orb.Point{lon, lat},
			Marker:   &style,
			Popup:    popup(rec, loc),
			RecordID: rec.ID,
		})
	}

	result.Applied = r.surface.withMap(h, func(m Map) {
		for _, l := range m.Layers() {
			if l.Tag == TagIncident {
				m.RemoveLayer(l.ID)
			}
		}
		for _, l := range layers {
			m.AddLayer(l)
		}
	})
	if !result.Applied {
		log.Printf("[reconciler] no live map, %d incidents not rendered", len(layers))
		return result
	}
	result.Rendered = len(layers)

	r.mu.Lock()
	r.gen++
	gen := r.gen
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	if len(layers) > 0 {
		r.pending = time.AfterFunc(r.fitDelay, func() { r.fitIncidents(h, gen) })
	}
	r.mu.Unlock()

	log.Printf("[reconciler] %d incidents rendered, %d skipped", result.Rendered, result.Skipped)
	return result
}

// SyncCurrentPosition replaces the current-position overlay of h
func (r *Reconciler) SyncCurrentPosition(h *Handle, lat, lon float64) bool {
	if !domain.ValidLatLon(lat, lon) {
		return false
	}
	return r.surface.withMap(h, func(m Map) {
		for _, l := range m.Layers() {
			if l.Tag == TagPosition {
				m.RemoveLayer(l.ID)
			}
		}
		m.AddLayer(Layer{
			ID:        uuid.NewString(),
			Kind:      LayerMarker,
			Tag:       TagPosition,
			Position:  orb.Point{lon, lat},
			Popup:     positionPopup,
			OpenPopup: true,
		})
	})
}

// Stop cancels a pending bounds fit
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func (r *Reconciler) fitIncidents(h *Handle, gen uint64) {
	r.mu.Lock()
	stale := gen != r.gen
	opts := r.fit
	r.mu.Unlock()
	if stale {
		return
	}

	r.surface.withMap(h, func(m Map) {
		var (
			bound orb.Bound
			found bool
		)
		for _, l := range m.Layers() {
			if l.Tag != TagIncident {
				continue
			}
			if !found {
				bound = l.Position.Bound()
				found = true
				continue
			}
			bound = bound.Extend(l.Position)
		}
		if found {
			m.FitBounds(bound, opts)
		}
	})
}

func popup(rec domain.IncidentRecord, loc *time.Location) string {
	date := "unknown"
	if !rec.CreatedAt.IsZero() {
		date = rec.CreatedAt.In(loc).Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("<strong>%s</strong><br>Date: %s<br>Count: %d<br>Votes: %d",
		html.EscapeString(rec.Type.Label()), date, rec.Occurrences(), rec.Upvotes)
}
