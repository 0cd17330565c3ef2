package mapview

import "github.com/paulmach/orb"

// Renderer is the external map library as seen by the surface. Its own
// types never leave this package.
type Renderer interface {
	// Available reports whether the library has been loaded
	Available() bool

	// NewMap binds a new map instance to an anchor
	NewMap(anchor string, center orb.Point, zoom int) (Map, error)
}

// Map is one live rendering instance
type Map interface {
	SetView(center orb.Point, zoom int)
	AddLayer(l Layer)
	RemoveLayer(id string)
	Layers() []Layer
	FitBounds(b orb.Bound, opts FitOptions)
	OnClick(fn func(lat, lon float64))
	Remove()
}
