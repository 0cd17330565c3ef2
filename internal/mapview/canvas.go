package mapview

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ScriptID is the identity of the map library script node
const ScriptID = "leaflet-script"

// Viewport size used to turn a bounds fit into a zoom level
const (
	defaultViewportWidth  = 800
	defaultViewportHeight = 600
	tileSize              = 256
)

var errContainerInUse = errors.New("map container is already initialized")

// Canvas is the server-side rendering backend. It keeps the layer set of
// every live map so the browser page can draw it, and is available once the
// library script is present in the document.
type Canvas struct {
	doc *Document

	mu      sync.Mutex
	maps    map[string]*CanvasMap
	created int
}

// NewCanvas creates a canvas rendering into doc
func NewCanvas(doc *Document) *Canvas {
	return &Canvas{
		doc:  doc,
		maps: make(map[string]*CanvasMap),
	}
}

// Available reports whether the library script was inserted
func (c *Canvas) Available() bool {
	return c.doc.HasScript(ScriptID)
}

// NewMap binds a map to anchor. Binding twice to the same anchor fails.
func (c *Canvas) NewMap(anchor string, center orb.Point, zoom int) (Map, error) {
	if !c.Available() {
		return nil, errors.New("map library is not loaded")
	}
	if !c.doc.HasAnchor(anchor) {
		return nil, fmt.Errorf("map container %q not found", anchor)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.maps[anchor]; ok {
		return nil, errContainerInUse
	}
	m := &CanvasMap{
		canvas: c,
		anchor: anchor,
		center: center,
		zoom:   zoom,
		width:  defaultViewportWidth,
		height: defaultViewportHeight,
	}
	c.maps[anchor] = m
	c.created++
	return m, nil
}

// Map returns the live map bound to anchor
func (c *Canvas) Map(anchor string) (*CanvasMap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.maps[anchor]
	return m, ok
}

// Created counts map instances created over the canvas lifetime
func (c *Canvas) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

func (c *Canvas) detach(m *CanvasMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maps[m.anchor] == m {
		delete(c.maps, m.anchor)
	}
}

// CanvasMap is one map instance held by a Canvas
type CanvasMap struct {
	canvas *Canvas
	anchor string

	mu       sync.Mutex
	center   orb.Point
	zoom     int
	width    int
	height   int
	layers   []Layer
	handlers []func(lat, lon float64)
	fits     int
	removed  bool
}

func (m *CanvasMap) SetView(center orb.Point, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = center
	m.zoom = zoom
}

func (m *CanvasMap) AddLayer(l Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return
	}
	for _, existing := range m.layers {
		if existing.ID == l.ID {
			return
		}
	}
	m.layers = append(m.layers, l)
}

func (m *CanvasMap) RemoveLayer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return
		}
	}
}

func (m *CanvasMap) Layers() []Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

func (m *CanvasMap) FitBounds(b orb.Bound, opts FitOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = b.Center()
	m.zoom = fitZoom(b, m.width, m.height, opts)
	m.fits++
}

func (m *CanvasMap) OnClick(fn func(lat, lon float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

func (m *CanvasMap) Remove() {
	m.mu.Lock()
	m.removed = true
	m.layers = nil
	m.handlers = nil
	m.mu.Unlock()
	m.canvas.detach(m)
}

// Click dispatches a click at lat/lon to the registered handlers
func (m *CanvasMap) Click(lat, lon float64) {
	m.mu.Lock()
	handlers := make([]func(lat, lon float64), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(lat, lon)
	}
}

// Fits counts the bounds fits applied to this map
func (m *CanvasMap) Fits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fits
}

// MapState is what the browser page draws
type MapState struct {
	Anchor   string                     `json:"anchor"`
	Center   orb.Point                  `json:"center"`
	Zoom     int                        `json:"zoom"`
	Tile     *TileSource                `json:"tile,omitempty"`
	Features *geojson.FeatureCollection `json:"features"`
}

// State exports the view and the marker layers as GeoJSON
func (m *CanvasMap) State() MapState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := MapState{
		Anchor:   m.anchor,
		Center:   m.center,
		Zoom:     m.zoom,
		Features: geojson.NewFeatureCollection(),
	}
	for _, l := range m.layers {
		switch l.Kind {
		case LayerTile:
			tile := *l.Tile
			state.Tile = &tile
		case LayerMarker:
			f := geojson.NewFeature(l.Position)
			f.ID = l.ID
			f.Properties["tag"] = string(l.Tag)
			f.Properties["popup"] = l.Popup
			f.Properties["open_popup"] = l.OpenPopup
			if l.RecordID != "" {
				f.Properties["record_id"] = l.RecordID
			}
			if l.Marker != nil {
				f.Properties["color"] = l.Marker.Color
				f.Properties["diameter"] = l.Marker.Diameter
				f.Properties["icon_size"] = l.Marker.IconSize
				f.Properties["opacity"] = l.Marker.Opacity
			}
			state.Features.Append(f)
		}
	}
	return state
}

// fitZoom returns the highest zoom at which b fits the padded viewport,
// capped at opts.MaxZoom.
func fitZoom(b orb.Bound, width, height int, opts FitOptions) int {
	maxZoom := opts.MaxZoom
	if maxZoom <= 0 {
		maxZoom = 18
	}
	w := float64(width - 2*opts.PaddingPx)
	h := float64(height - 2*opts.PaddingPx)
	if w <= 0 || h <= 0 {
		return 0
	}

	lonFrac := (b.Max.Lon() - b.Min.Lon()) / 360
	latFrac := (mercatorY(b.Max.Lat()) - mercatorY(b.Min.Lat())) / (2 * math.Pi)

	zoom := float64(maxZoom)
	if lonFrac > 0 {
		zoom = math.Min(zoom, math.Log2(w/tileSize/lonFrac))
	}
	if latFrac > 0 {
		zoom = math.Min(zoom, math.Log2(h/tileSize/latFrac))
	}
	if zoom < 0 {
		return 0
	}
	return int(math.Floor(zoom))
}

func mercatorY(lat float64) float64 {
	lat = math.Max(math.Min(lat, 85.0511), -85.0511)
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}
