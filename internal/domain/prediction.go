package domain

import "time"

// PredictionAggregate is the server model output for one incident type
type PredictionAggregate struct {
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	SampleSize  int     `json:"sampleSize"`
}

// QueryLocation echoes the location a server computation ran for
type QueryLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    int     `json:"radius"`
}

// PredictionTime is the moment a prediction targets
type PredictionTime struct {
	DayOfWeek int       `json:"dayOfWeek"`
	HourOfDay int       `json:"hourOfDay"`
	Date      time.Time `json:"date"`
}

// PredictionMetadata describes the history behind a prediction
type PredictionMetadata struct {
	TotalHistoricalReports int            `json:"totalHistoricalReports"`
	DataPeriodDays         int            `json:"dataPeriodDays"`
	ReportsByType          map[string]int `json:"reportsByType"`
}

// PredictionsResponse is the body of GET predictions/incidents
type PredictionsResponse struct {
	Success     bool                           `json:"success"`
	Message     string                         `json:"message,omitempty"`
	Location    QueryLocation                  `json:"location"`
	Time        PredictionTime                 `json:"time"`
	Predictions map[string]PredictionAggregate `json:"predictions"`
	Metadata    PredictionMetadata             `json:"metadata"`
}

// PeakHour is one hour-of-day bucket
type PeakHour struct {
	Hour       int     `json:"hour"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PeakDay is one day-of-week bucket, 0 being Sunday
type PeakDay struct {
	Day        int     `json:"day"`
	DayName    string  `json:"dayName"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PeakTimesMetadata describes the window peak times were computed over
type PeakTimesMetadata struct {
	DataPeriod string    `json:"dataPeriod"`
	StartDate  time.Time `json:"startDate"`
	ReportType string    `json:"reportType"`
}

// PeakTimesResponse is the body of GET predictions/peakTimes
type PeakTimesResponse struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message,omitempty"`
	Location  QueryLocation         `json:"location"`
	PeakHours map[string][]PeakHour `json:"peakHours"`
	PeakDays  map[string][]PeakDay  `json:"peakDays"`
	Metadata  PeakTimesMetadata     `json:"metadata"`
}
