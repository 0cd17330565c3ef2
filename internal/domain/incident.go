package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// IncidentType is the category a user picked when reporting
type IncidentType string

const (
	IncidentAccident   IncidentType = "ACCIDENT"
	IncidentTrafficJam IncidentType = "TRAFFIC_JAM"
	IncidentRoadClosed IncidentType = "ROAD_CLOSED"
	IncidentPolice     IncidentType = "POLICE"
	IncidentObstacle   IncidentType = "OBSTACLE"
)

// IncidentTypes lists the known types in display order
var IncidentTypes = []IncidentType{
	IncidentAccident,
	IncidentTrafficJam,
	IncidentRoadClosed,
	IncidentPolice,
	IncidentObstacle,
}

// Known reports whether t is one of IncidentTypes
func (t IncidentType) Known() bool {
	for _, k := range IncidentTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Label turns TRAFFIC_JAM into "TRAFFIC JAM"
func (t IncidentType) Label() string {
	if t == "" {
		return "UNKNOWN"
	}
	return strings.ReplaceAll(string(t), "_", " ")
}

// GeoJSONPoint is the location shape stored by the report API.
// Coordinates are [longitude, latitude].
type GeoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// UnmarshalJSON never fails. Coordinates that are not an array of numbers
// decode to nil, so LatLon reports the point as unusable.
func (p *GeoJSONPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	*p = GeoJSONPoint{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	p.Type = raw.Type
	p.Coordinates = numbers(raw.Coordinates)
	return nil
}

func numbers(data json.RawMessage) []float64 {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil || elems == nil {
		return nil
	}
	out := make([]float64, 0, len(elems))
	for _, e := range elems {
		var f *float64
		if err := json.Unmarshal(e, &f); err != nil || f == nil {
			return nil
		}
		out = append(out, *f)
	}
	return out
}

// IncidentRecord is one report as returned by the report API.
// Records are read-only snapshots for the duration of one fetch cycle.
type IncidentRecord struct {
	ID        string       `json:"_id"`
	Type      IncidentType `json:"type"`
	Location  GeoJSONPoint `json:"location"`
	Count     int          `json:"count"`
	Upvotes   int          `json:"upvotes"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LatLon returns the record position. ok is false unless the record has
// exactly two finite coordinates within range.
func (r IncidentRecord) LatLon() (lat, lon float64, ok bool) {
	if len(r.Location.Coordinates) != 2 {
		return 0, 0, false
	}
	lon, lat = r.Location.Coordinates[0], r.Location.Coordinates[1]
	if !ValidLatLon(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

// UnmarshalJSON decodes a record, leaving CreatedAt zero when the
// timestamp is missing or unparsable.
func (r *IncidentRecord) UnmarshalJSON(data []byte) error {
	type record IncidentRecord
	var raw struct {
		record
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = IncidentRecord(raw.record)
	r.CreatedAt = time.Time{}
	if len(raw.CreatedAt) > 0 {
		var at time.Time
		if err := json.Unmarshal(raw.CreatedAt, &at); err == nil {
			r.CreatedAt = at
		}
	}
	return nil
}

// Occurrences is Count with the API's missing-value default applied
func (r IncidentRecord) Occurrences() int {
	if r.Count < 1 {
		return 1
	}
	return r.Count
}

// IncidentsResponse is the body of GET reports/all
type IncidentsResponse struct {
	Success bool             `json:"success"`
	Reports []IncidentRecord `json:"reports"`
	Message string           `json:"message,omitempty"`
	// Skipped counts report entries that could not be decoded at all
	Skipped int `json:"-"`
}

// UnmarshalJSON decodes the reports one by one so a broken entry only
// drops itself. The reports field must still be an array.
func (r *IncidentsResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success bool              `json:"success"`
		Reports []json.RawMessage `json:"reports"`
		Message string            `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = IncidentsResponse{Success: raw.Success, Message: raw.Message}
	if raw.Reports == nil {
		return nil
	}
	r.Reports = make([]IncidentRecord, 0, len(raw.Reports))
	for _, entry := range raw.Reports {
		var rec IncidentRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			r.Skipped++
			continue
		}
		r.Reports = append(r.Reports, rec)
	}
	return nil
}

// NearbySummary describes the reports around the current query
type NearbySummary struct {
	Total      int          `json:"total"`
	WithinArea int          `json:"within_area"`
	TopType    IncidentType `json:"top_type,omitempty"`
	LatestAt   *time.Time   `json:"latest_at,omitempty"`
}
