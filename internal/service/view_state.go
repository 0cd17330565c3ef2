package service

import (
	"log"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/mapview"
)

// Window of the daily incident series
const seriesDays = 30

// ViewState is everything the page needs to render a view
type ViewState struct {
	ID               string               `json:"id"`
	Tab              Tab                  `json:"tab"`
	Query            domain.LocationQuery `json:"query"`
	Zoom             int                  `json:"zoom"`
	Style            domain.BaseStyle     `json:"style"`
	Map              string               `json:"map"`
	Loading          bool                 `json:"loading"`
	IncidentsLoading bool                 `json:"incidents_loading"`
	LocationLoading  bool                 `json:"location_loading"`
	LocationStatus   string               `json:"location_status,omitempty"`
	Error            string               `json:"error,omitempty"`
	Incidents        *IncidentsPanel      `json:"incidents,omitempty"`
	Predictions      *PredictionsPanel    `json:"predictions,omitempty"`
	PeakTimes        *PeakTimesPanel      `json:"peak_times,omitempty"`
}

// IncidentsPanel summarizes the last incident snapshot
type IncidentsPanel struct {
	Count     int                   `json:"count"`
	Today     int                   `json:"today"`
	Nearby    domain.NearbySummary  `json:"nearby"`
	TopTypes  []analytics.TypeCount `json:"top_types"`
	ByDay     []analytics.DayCount  `json:"by_day"`
	PeakHours []domain.PeakHour     `json:"peak_hours"`
	PeakDays  []domain.PeakDay      `json:"peak_days"`
	Sync      mapview.SyncResult    `json:"sync"`
}

// PredictionsPanel is the chart data of the predictions tab
type PredictionsPanel struct {
	Rows          []analytics.PredictionRow `json:"rows"`
	ReportsByType []analytics.TypeCount     `json:"reports_by_type"`
	TotalReports  int                       `json:"total_reports"`
	PeriodDays    int                       `json:"period_days"`
}

// PeakTimesPanel is the chart data of the peak times tab
type PeakTimesPanel struct {
	Type     string            `json:"type"`
	Hours    []domain.PeakHour `json:"hours"`
	Days     []domain.PeakDay  `json:"days"`
	TopHours []domain.PeakHour `json:"top_hours"`
	Period   string            `json:"period,omitempty"`
}

// Snapshot projects the view into its display state
func (v *PredictionsView) Snapshot() ViewState {
	v.mu.Lock()
	state := ViewState{
		ID:               v.ID.String(),
		Tab:              v.tab,
		Query:            v.query,
		Zoom:             v.zoom,
		Style:            v.style,
		Loading:          v.loading,
		IncidentsLoading: v.incidentsLoading,
		LocationLoading:  v.locationLoading,
		LocationStatus:   v.locationStatus,
		Error:            v.errMsg,
	}
	incidents := v.incidents
	fetched := v.incidentsFetched
	lastSync := v.lastSync
	predictions := v.predictions
	peakTimes := v.peakTimes
	v.mu.Unlock()

	state.Map = v.surface.State().String()
	if fetched {
		state.Incidents = v.incidentsPanel(incidents, state.Query)
		state.Incidents.Sync = lastSync
	}
	if predictions != nil {
		state.Predictions = &PredictionsPanel{
			Rows:          analytics.PredictionSeries(predictions),
			ReportsByType: analytics.TopTypesMap(predictions.Metadata.ReportsByType, len(predictions.Metadata.ReportsByType)),
			TotalReports:  predictions.Metadata.TotalHistoricalReports,
			PeriodDays:    predictions.Metadata.DataPeriodDays,
		}
	}
	if peakTimes != nil {
		typ, hours := analytics.ServerPeakHours(peakTimes, state.Query.IncidentType)
		_, days := analytics.ServerPeakDays(peakTimes, domain.IncidentType(typ))
		state.PeakTimes = &PeakTimesPanel{
			Type:     typ,
			Hours:    hours,
			Days:     days,
			TopHours: analytics.TopPeakHours(hours, 3),
			Period:   peakTimes.Metadata.DataPeriod,
		}
	}
	return state
}

func (v *PredictionsView) incidentsPanel(records []domain.IncidentRecord, q domain.LocationQuery) *IncidentsPanel {
	counts := analytics.CountByType(records)
	return &IncidentsPanel{
		Count:     len(records),
		Today:     len(v.projector.FromToday(records)),
		Nearby:    v.nearby(records, q),
		TopTypes:  analytics.TopTypes(counts, 5),
		ByDay:     v.projector.ByDay(records, seriesDays),
		PeakHours: v.projector.PeakHours(records, q.IncidentType),
		PeakDays:  v.projector.PeakDays(records, q.IncidentType),
	}
}

// nearby summarizes the records within the query radius
func (v *PredictionsView) nearby(records []domain.IncidentRecord, q domain.LocationQuery) domain.NearbySummary {
	summary := domain.NearbySummary{Total: len(records)}
	within, err := v.index.WithinRadius(q.Latitude, q.Longitude, q.Radius)
	if err != nil {
		log.Printf("[view %s] nearby search failed: %v", v.ID, err)
		return summary
	}
	summary.WithinArea = len(within)
	if top := analytics.TopTypes(analytics.CountByType(within), 1); len(top) > 0 {
		summary.TopType = top[0].Type
	}
	for _, r := range within {
		if r.CreatedAt.IsZero() {
			continue
		}
		if summary.LatestAt == nil || r.CreatedAt.After(*summary.LatestAt) {
			at := r.CreatedAt
			summary.LatestAt = &at
		}
	}
	return summary
}
