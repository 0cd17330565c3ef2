package analytics

import (
	"sort"

	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/pkg/utils"
)

// PredictionRow is one bar pair of the prediction chart
type PredictionRow struct {
	Type        string  `json:"type"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	SampleSize  int     `json:"sample_size"`
}

// PredictionSeries turns the prediction map into chart rows, rounded to two
// decimals and bounded to [0, 100].
func PredictionSeries(resp *domain.PredictionsResponse) []PredictionRow {
	if resp == nil {
		return []PredictionRow{}
	}
	keys := OrderedKeys(resp.Predictions)
	rows := make([]PredictionRow, 0, len(keys))
	for _, k := range keys {
		agg := resp.Predictions[k]
		rows = append(rows, PredictionRow{
			Type:        k,
			Probability: utils.Percent(agg.Probability),
			Confidence:  utils.Percent(agg.Confidence),
			SampleSize:  agg.SampleSize,
		})
	}
	return rows
}

// ServerPeakHours returns the hours of typ sorted by hour. An empty typ
// selects the first type of the payload. The resolved type is returned.
func ServerPeakHours(resp *domain.PeakTimesResponse, typ domain.IncidentType) (string, []domain.PeakHour) {
	if resp == nil {
		return "", []domain.PeakHour{}
	}
	key := resolveType(OrderedKeys(resp.PeakHours), typ)
	hours := append(make([]domain.PeakHour, 0, len(resp.PeakHours[key])), resp.PeakHours[key]...)
	sort.SliceStable(hours, func(i, j int) bool { return hours[i].Hour < hours[j].Hour })
	return key, hours
}

// ServerPeakDays returns the days of typ sorted by day
func ServerPeakDays(resp *domain.PeakTimesResponse, typ domain.IncidentType) (string, []domain.PeakDay) {
	if resp == nil {
		return "", []domain.PeakDay{}
	}
	key := resolveType(OrderedKeys(resp.PeakDays), typ)
	days := append(make([]domain.PeakDay, 0, len(resp.PeakDays[key])), resp.PeakDays[key]...)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return key, days
}

// TopPeakHours keeps the n busiest hours, ties in hour order
func TopPeakHours(hours []domain.PeakHour, n int) []domain.PeakHour {
	if n <= 0 {
		return []domain.PeakHour{}
	}
	sorted := append(make([]domain.PeakHour, 0, len(hours)), hours...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Hour < sorted[j].Hour
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// OrderedKeys returns map keys with known incident types first, in their
// display order, then the rest by name.
func OrderedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for _, t := range domain.IncidentTypes {
		if _, ok := m[string(t)]; ok {
			keys = append(keys, string(t))
		}
	}
	var rest []string
	for k := range m {
		if !domain.IncidentType(k).Known() {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func resolveType(keys []string, typ domain.IncidentType) string {
	if typ != "" {
		return string(typ)
	}
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
