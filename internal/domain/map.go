package domain

// MapLifecycleState governs which map surface operations are legal
type MapLifecycleState int

const (
	MapUnloaded MapLifecycleState = iota
	MapLoading
	MapReady
	MapDestroyed
)

func (s MapLifecycleState) String() string {
	switch s {
	case MapUnloaded:
		return "unloaded"
	case MapLoading:
		return "loading"
	case MapReady:
		return "ready"
	case MapDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// BaseStyle selects the background tile layer
type BaseStyle string

const (
	StyleStandard  BaseStyle = "standard"
	StyleSatellite BaseStyle = "satellite"
)

// Toggle flips between standard and satellite
func (s BaseStyle) Toggle() BaseStyle {
	if s == StyleSatellite {
		return StyleStandard
	}
	return StyleSatellite
}

// Map defaults
const (
	DefaultZoom = 13
	MinZoom     = 1
	MaxZoom     = 19
)
