package mapview

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/roadwatch/console/internal/domain"
)

// Handle refers to the rendering instance a Surface holds. A handle stays
// valid until the surface releases it or its anchor is unmounted.
type Handle struct {
	ID     uuid.UUID
	Anchor string

	gen uint64
	m   Map
}

// Surface owns at most one live map instance for a view and tracks its
// lifecycle: Unloaded → Loading → Ready → Destroyed → Loading ...
type Surface struct {
	doc      *Document
	renderer Renderer

	mu      sync.Mutex
	state   domain.MapLifecycleState
	current *Handle
	onClick func(lat, lon float64)
}

// NewSurface creates an unloaded surface
func NewSurface(doc *Document, renderer Renderer) *Surface {
	return &Surface{
		doc:      doc,
		renderer: renderer,
		state:    domain.MapUnloaded,
	}
}

// OnClick sets the callback invoked with the coordinates of a map click.
// Clicks never mutate overlays.
func (s *Surface) OnClick(fn func(lat, lon float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick = fn
}

// State returns the lifecycle state
func (s *Surface) State() domain.MapLifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire returns the live handle for anchorID, creating a map instance only
// when none is held. It returns nil when the library is unavailable or the
// anchor is absent.
func (s *Surface) Acquire(anchorID string, lat, lon float64, zoom int) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.renderer.Available() {
		log.Printf("[mapview] acquire %s: map library not loaded", anchorID)
		return nil
	}

	if s.current != nil {
		if s.current.Anchor == anchorID && s.liveLocked(s.current) {
			return s.current
		}
		// Bound to an anchor that is gone or to another anchor
		s.teardownLocked()
	}

	s.state = domain.MapLoading

	gen, ok := s.doc.AnchorGeneration(anchorID)
	if !ok {
		log.Printf("[mapview] acquire %s: anchor not present in document", anchorID)
		return nil
	}
	if !domain.ValidLatLon(lat, lon) {
		lat, lon = domain.DefaultCenterLat, domain.DefaultCenterLon
	}

	m, err := s.renderer.NewMap(anchorID, orb.Point{lon, lat}, clampZoom(zoom))
	if err != nil {
		log.Printf("[mapview] acquire %s: %v", anchorID, err)
		return nil
	}
	m.OnClick(s.dispatchClick)

	h := &Handle{ID: uuid.New(), Anchor: anchorID, gen: gen, m: m}
	s.current = h
	s.state = domain.MapReady
	log.Printf("[mapview] map %s ready on %s", h.ID, anchorID)
	return h
}

// Current returns the live handle, or nil
func (s *Surface) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.liveLocked(s.current) {
		return s.current
	}
	return nil
}

// Recenter moves the view without touching overlays. It reports whether
// the handle was live.
func (s *Surface) Recenter(h *Handle, lat, lon float64, zoom int) bool {
	if !domain.ValidLatLon(lat, lon) {
		return false
	}
	return s.withMap(h, func(m Map) {
		m.SetView(orb.Point{lon, lat}, clampZoom(zoom))
	})
}

// SetBaseStyle swaps the tile layers for the style's tile source. Marker
// layers are left alone.
func (s *Surface) SetBaseStyle(h *Handle, style domain.BaseStyle) bool {
	return s.withMap(h, func(m Map) {
		for _, l := range m.Layers() {
			if l.Kind == LayerTile {
				m.RemoveLayer(l.ID)
			}
		}
		ts := TileSourceFor(style)
		m.AddLayer(Layer{ID: uuid.NewString(), Kind: LayerTile, Tile: &ts})
	})
}

// Release tears the instance down. Releasing with nothing held, or with a
// handle that is no longer current, does nothing.
func (s *Surface) Release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || (h != nil && h != s.current) {
		return
	}
	s.teardownLocked()
}

// withMap runs fn against the map of h while holding the surface lock, if
// h is still live.
func (s *Surface) withMap(h *Handle, fn func(m Map)) bool {
	if h == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(h) {
		return false
	}
	fn(h.m)
	return true
}

func (s *Surface) liveLocked(h *Handle) bool {
	if h != s.current || s.state != domain.MapReady {
		return false
	}
	gen, ok := s.doc.AnchorGeneration(h.Anchor)
	return ok && gen == h.gen
}

func (s *Surface) teardownLocked() {
	if s.current != nil {
		s.current.m.Remove()
		log.Printf("[mapview] map %s released", s.current.ID)
	}
	s.current = nil
	s.state = domain.MapDestroyed
}

func (s *Surface) dispatchClick(lat, lon float64) {
	s.mu.Lock()
	fn := s.onClick
	s.mu.Unlock()
	if fn != nil && domain.ValidLatLon(lat, lon) {
		fn(lat, lon)
	}
}

func clampZoom(zoom int) int {
	if zoom < domain.MinZoom {
		return domain.MinZoom
	}
	if zoom > domain.MaxZoom {
		return domain.MaxZoom
	}
	return zoom
}
