package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/domain"
)

// DashboardData is the overview shown on the console home page
type DashboardData struct {
	Total     int                   `json:"total"`
	Today     int                   `json:"today"`
	ByDay     []analytics.DayCount  `json:"by_day"`
	TopTypes  []analytics.TypeCount `json:"top_types"`
	PeakType  string                `json:"peak_type,omitempty"`
	PeakHours []domain.PeakHour     `json:"peak_hours"`
	Message   string                `json:"message,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// DashboardService aggregates the report feed into the home page overview
type DashboardService struct {
	reports   ReportSource
	projector analytics.Projector
	center    domain.LocationQuery
}

// NewDashboardService creates a new dashboard service. Server peak times
// are requested around center.
func NewDashboardService(reports ReportSource, projector analytics.Projector, center domain.LocationQuery) *DashboardService {
	return &DashboardService{
		reports:   reports,
		projector: projector,
		center:    center,
	}
}

// GetDashboardData fetches reports and peak times concurrently. A peak
// time failure is logged and the rest is still returned.
func (s *DashboardService) GetDashboardData(ctx context.Context) (DashboardData, error) {
	var (
		records   []domain.IncidentRecord
		peakTimes *domain.PeakTimesResponse
		reportErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		records, reportErr = s.reports.Incidents(ctx, "", IncidentLimit)
	}()
	go func() {
		defer wg.Done()
		resp, err := s.reports.PeakTimes(ctx, s.center)
		if err != nil {
			log.Printf("[dashboard] peak times fetch error: %v", err)
			return
		}
		peakTimes = resp
	}()
	wg.Wait()

	if reportErr != nil {
		var fe *domain.FetchError
		if errors.As(reportErr, &fe) || errors.Is(reportErr, domain.ErrSessionExpired) {
			return DashboardData{}, reportErr
		}
		return DashboardData{}, &domain.FetchError{
			Endpoint: "reports/all",
			Message:  "Could not load the data. Please try again.",
			Err:      reportErr,
		}
	}

	data := DashboardData{
		Total:     len(records),
		Today:     len(s.projector.FromToday(records)),
		ByDay:     s.projector.ByDay(records, seriesDays),
		TopTypes:  analytics.TopTypes(analytics.CountByType(records), 5),
		PeakHours: []domain.PeakHour{},
		Timestamp: s.projector.Now(),
	}
	if len(records) == 0 {
		data.Message = "No reports found."
	}
	if peakTimes != nil {
		data.PeakType, data.PeakHours = analytics.ServerPeakHours(peakTimes, "")
	}
	return data, nil
}
