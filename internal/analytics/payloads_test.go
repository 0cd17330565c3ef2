package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/console/internal/domain"
)

func TestPredictionSeries(t *testing.T) {
	resp := &domain.PredictionsResponse{
		Success: true,
		Predictions: map[string]domain.PredictionAggregate{
			"POLICE":   {Probability: 12.3456, Confidence: 80.001, SampleSize: 12},
			"ACCIDENT": {Probability: 104, Confidence: 55.556, SampleSize: 40},
			"CUSTOM":   {Probability: 1, Confidence: 2, SampleSize: 1},
		},
	}
	rows := PredictionSeries(resp)
	require.Len(t, rows, 3)
	assert.Equal(t, "ACCIDENT", rows[0].Type)
	assert.Equal(t, 100.0, rows[0].Probability)
	assert.Equal(t, 55.56, rows[0].Confidence)
	assert.Equal(t, "POLICE", rows[1].Type)
	assert.Equal(t, 12.35, rows[1].Probability)
	assert.Equal(t, "CUSTOM", rows[2].Type)

	assert.Empty(t, PredictionSeries(nil))
}

func TestServerPeakHoursDefaultsToFirstType(t *testing.T) {
	resp := &domain.PeakTimesResponse{
		Success: true,
		PeakHours: map[string][]domain.PeakHour{
			"TRAFFIC_JAM": {{Hour: 18, Count: 9}, {Hour: 8, Count: 12}},
			"ACCIDENT":    {{Hour: 17, Count: 4}, {Hour: 7, Count: 2}, {Hour: 12, Count: 1}},
		},
	}
	typ, hours := ServerPeakHours(resp, "")
	assert.Equal(t, "ACCIDENT", typ)
	require.Len(t, hours, 3)
	assert.Equal(t, []int{7, 12, 17}, []int{hours[0].Hour, hours[1].Hour, hours[2].Hour})

	// The payload itself is not reordered
	assert.Equal(t, 17, resp.PeakHours["ACCIDENT"][0].Hour)

	typ, hours = ServerPeakHours(resp, domain.IncidentTrafficJam)
	assert.Equal(t, "TRAFFIC_JAM", typ)
	assert.Equal(t, 8, hours[0].Hour)

	_, hours = ServerPeakHours(resp, domain.IncidentPolice)
	assert.NotNil(t, hours)
	assert.Empty(t, hours)
}

func TestServerPeakDays(t *testing.T) {
	resp := &domain.PeakTimesResponse{
		PeakDays: map[string][]domain.PeakDay{
			"POLICE": {{Day: 5, DayName: "Friday", Count: 3}, {Day: 1, DayName: "Monday", Count: 1}},
		},
	}
	typ, days := ServerPeakDays(resp, "")
	assert.Equal(t, "POLICE", typ)
	assert.Equal(t, 1, days[0].Day)
	assert.Equal(t, 5, days[1].Day)
}

func TestTopPeakHours(t *testing.T) {
	hours := []domain.PeakHour{{Hour: 1, Count: 2}, {Hour: 9, Count: 7}, {Hour: 3, Count: 7}, {Hour: 20, Count: 5}}
	top := TopPeakHours(hours, 3)
	assert.Equal(t, []int{3, 9, 20}, []int{top[0].Hour, top[1].Hour, top[2].Hour})
}
