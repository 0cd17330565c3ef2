// Package analytics projects report and prediction payloads into chart and
// table rows. Every function is pure: the same input always gives the same
// output, and inputs are never modified.
package analytics

import (
	"sort"
	"time"

	"github.com/roadwatch/console/internal/domain"
)

// UnknownType labels records reported without a type
const UnknownType domain.IncidentType = "UNKNOWN"

// TypeCount is a per-type total
type TypeCount struct {
	Type  domain.IncidentType `json:"type"`
	Count int                 `json:"count"`
}

// DayCount is one bucket of a daily series
type DayCount struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

var dayNames = map[string][7]string{
	"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	"fr": {"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"},
}

// Projector holds what the time-based projections depend on
type Projector struct {
	Loc    *time.Location
	Now    func() time.Time
	Locale string
}

// NewProjector creates a projector for a time zone and day-name locale
func NewProjector(loc *time.Location, locale string) Projector {
	if loc == nil {
		loc = time.Local
	}
	if _, ok := dayNames[locale]; !ok {
		locale = "en"
	}
	return Projector{Loc: loc, Now: time.Now, Locale: locale}
}

// DayName returns the localized name of day 0..6, 0 being Sunday
func (p Projector) DayName(day int) string {
	names, ok := dayNames[p.Locale]
	if !ok {
		names = dayNames["en"]
	}
	if day < 0 || day > 6 {
		return ""
	}
	return names[day]
}

// CountByType totals records per type in first-seen order
func CountByType(records []domain.IncidentRecord) []TypeCount {
	index := make(map[domain.IncidentType]int)
	var out []TypeCount
	for _, r := range records {
		t := r.Type
		if t == "" {
			t = UnknownType
		}
		i, ok := index[t]
		if !ok {
			index[t] = len(out)
			out = append(out, TypeCount{Type: t})
			i = len(out) - 1
		}
		out[i].Count++
	}
	return out
}

// TopTypes sorts by count descending, ties keeping input order, and keeps
// the first n.
func TopTypes(counts []TypeCount, n int) []TypeCount {
	if n <= 0 {
		return []TypeCount{}
	}
	sorted := make([]TypeCount, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TopTypesMap is TopTypes for a server-side map. Ties follow the known type
// order, then name.
func TopTypesMap(counts map[string]int, n int) []TypeCount {
	keys := OrderedKeys(counts)
	list := make([]TypeCount, 0, len(keys))
	for _, k := range keys {
		list = append(list, TypeCount{Type: domain.IncidentType(k), Count: counts[k]})
	}
	return TopTypes(list, n)
}

// PeakHours buckets the records of typ by local hour of day. All 24 hours
// are returned in ascending order. An empty typ matches every record.
func (p Projector) PeakHours(records []domain.IncidentRecord, typ domain.IncidentType) []domain.PeakHour {
	var counts [24]int
	total := 0
	for _, r := range records {
		if !matches(r, typ) || r.CreatedAt.IsZero() {
			continue
		}
		counts[r.CreatedAt.In(p.loc()).Hour()]++
		total++
	}

	out := make([]domain.PeakHour, 24)
	for h := range out {
		out[h] = domain.PeakHour{Hour: h, Count: counts[h], Percentage: percentage(counts[h], total)}
	}
	return out
}

// PeakDays buckets the records of typ by local day of week, Sunday first
func (p Projector) PeakDays(records []domain.IncidentRecord, typ domain.IncidentType) []domain.PeakDay {
	var counts [7]int
	total := 0
	for _, r := range records {
		if !matches(r, typ) || r.CreatedAt.IsZero() {
			continue
		}
		counts[int(r.CreatedAt.In(p.loc()).Weekday())]++
		total++
	}

	out := make([]domain.PeakDay, 7)
	for d := range out {
		out[d] = domain.PeakDay{
			Day:        d,
			DayName:    p.DayName(d),
			Count:      counts[d],
			Percentage: percentage(counts[d], total),
		}
	}
	return out
}

// ByDay counts records per calendar day over the trailing windowDays days
// ending today, oldest first. Records outside the window are ignored.
func (p Projector) ByDay(records []domain.IncidentRecord, windowDays int) []DayCount {
	if windowDays <= 0 {
		return []DayCount{}
	}
	loc := p.loc()
	y, m, d := p.now().In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -(windowDays - 1))

	out := make([]DayCount, windowDays)
	index := make(map[string]int, windowDays)
	for i := range out {
		day := start.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		out[i] = DayCount{Date: key, Label: day.Format("02/01")}
		index[key] = i
	}

	for _, r := range records {
		if r.CreatedAt.IsZero() {
			continue
		}
		if i, ok := index[r.CreatedAt.In(loc).Format("2006-01-02")]; ok {
			out[i].Count++
		}
	}
	return out
}

// FromToday keeps the records created today in the projector's time zone
func (p Projector) FromToday(records []domain.IncidentRecord) []domain.IncidentRecord {
	loc := p.loc()
	today := p.now().In(loc).Format("2006-01-02")
	out := make([]domain.IncidentRecord, 0)
	for _, r := range records {
		if !r.CreatedAt.IsZero() && r.CreatedAt.In(loc).Format("2006-01-02") == today {
			out = append(out, r)
		}
	}
	return out
}

func (p Projector) loc() *time.Location {
	if p.Loc == nil {
		return time.Local
	}
	return p.Loc
}

func (p Projector) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func matches(r domain.IncidentRecord, typ domain.IncidentType) bool {
	return typ == "" || r.Type == typ
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(count) / float64(total)
}
