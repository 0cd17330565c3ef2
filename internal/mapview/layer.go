package mapview

import (
	"github.com/paulmach/orb"

	"github.com/roadwatch/console/internal/domain"
)

// LayerKind separates base tiles from markers
type LayerKind string

const (
	LayerTile   LayerKind = "tile"
	LayerMarker LayerKind = "marker"
)

// Tag discriminates marker overlays. Only the reconciler touches tagged layers.
type Tag string

const (
	TagNone     Tag = ""
	TagPosition Tag = "position"
	TagIncident Tag = "incident"
)

// MarkerStyle is the circle icon drawn for a marker
type MarkerStyle struct {
	Color    string  `json:"color"`
	Diameter int     `json:"diameter"`
	IconSize int     `json:"icon_size"`
	Opacity  float64 `json:"opacity"`
}

// TileSource is a base map tile template
type TileSource struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// Layer is one entry in a map's layer set
type Layer struct {
	ID        string
	Kind      LayerKind
	Tag       Tag
	Position  orb.Point
	Marker    *MarkerStyle
	Popup     string
	OpenPopup bool
	Tile      *TileSource
	RecordID  string
}

// FitOptions constrain a bounds fit
type FitOptions struct {
	PaddingPx int
	MaxZoom   int
}

// Tile sources per base style
var tileSources = map[domain.BaseStyle]TileSource{
	domain.StyleStandard: {
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "© OpenStreetMap contributors",
	},
	domain.StyleSatellite: {
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Imagery © Esri",
	},
}

// TileSourceFor returns the tile source of a style, standard for unknown ones
func TileSourceFor(style domain.BaseStyle) TileSource {
	if ts, ok := tileSources[style]; ok {
		return ts
	}
	return tileSources[domain.StyleStandard]
}

var incidentColors = map[domain.IncidentType]string{
	domain.IncidentAccident:   "red",
	domain.IncidentTrafficJam: "orange",
	domain.IncidentRoadClosed: "purple",
	domain.IncidentPolice:     "blue",
	domain.IncidentObstacle:   "brown",
}

// IncidentColor maps an incident type to its marker color
func IncidentColor(t domain.IncidentType) string {
	if c, ok := incidentColors[t]; ok {
		return c
	}
	return "gray"
}

// Marker size grows by sizeStep px per occurrence
const (
	markerBaseDiameter = 10
	markerBaseIcon     = 15
	markerSizeStep     = 3
	markerOpacity      = 0.7
)

// IncidentMarkerStyle sizes and colors the marker of one record
func IncidentMarkerStyle(t domain.IncidentType, count int) MarkerStyle {
	if count < 1 {
		count = 1
	}
	return MarkerStyle{
		Color:    IncidentColor(t),
		Diameter: markerBaseDiameter + count*markerSizeStep,
		IconSize: markerBaseIcon + count*markerSizeStep,
		Opacity:  markerOpacity,
	}
}
