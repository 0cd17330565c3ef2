package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/mapview"
	"github.com/roadwatch/console/internal/spatial"
)

// MapAnchor is the id of the element the incident map is bound to. It is
// only mounted while the incidents tab is active.
const MapAnchor = "incident-map"

// Tab is a panel of the predictions view
type Tab string

const (
	TabPredictions Tab = "predictions"
	TabPeakTimes   Tab = "peakTimes"
	TabIncidents   Tab = "incidents"
)

// ParseTab validates a tab name
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabPredictions, TabPeakTimes, TabIncidents:
		return t, nil
	default:
		return "", fmt.Errorf("service: unknown tab %q", s)
	}
}

// ReportSource is the report API as seen by a view
type ReportSource interface {
	Incidents(ctx context.Context, typ domain.IncidentType, limit int) ([]domain.IncidentRecord, error)
	Predictions(ctx context.Context, q domain.LocationQuery, date time.Time) (*domain.PredictionsResponse, error)
	PeakTimes(ctx context.Context, q domain.LocationQuery) (*domain.PeakTimesResponse, error)
}

// ViewOptions configures new views
type ViewOptions struct {
	ScriptURL string
	StyleURL  string
	// Fetcher is shared by every view so library bodies are downloaded once
	Fetcher  mapview.Fetcher
	FitDelay time.Duration
	Location *time.Location
	Locale   string
	Center   domain.LocationQuery
	Now      func() time.Time
}

// LocationUpdate carries the fields of a location change. Nil fields are
// left as they are.
type LocationUpdate struct {
	Latitude     *float64             `json:"latitude"`
	Longitude    *float64             `json:"longitude"`
	Radius       *int                 `json:"radius"`
	IncidentType *domain.IncidentType `json:"type"`
	Zoom         *int                 `json:"zoom"`
}

// PredictionsView is one open predictions/analytics page. It owns its map
// surface and wires user input to the location query, the report API and
// the marker reconciler.
type PredictionsView struct {
	ID uuid.UUID

	reports ReportSource
	geo     *GeoResolver
	repo    DataRepository
	now     func() time.Time

	doc        *mapview.Document
	canvas     *mapview.Canvas
	loader     *mapview.ResourceLoader
	surface    *mapview.Surface
	reconciler *mapview.Reconciler
	projector  analytics.Projector
	index      *spatial.IncidentIndex

	// mu guards the fields below. It is never held across a network call.
	mu               sync.Mutex
	tab              Tab
	query            domain.LocationQuery
	zoom             int
	style            domain.BaseStyle
	incidents        []domain.IncidentRecord
	incidentsFetched bool
	incidentSeq      uint64
	lastSync         mapview.SyncResult
	predictions      *domain.PredictionsResponse
	peakTimes        *domain.PeakTimesResponse
	loading          bool
	incidentsLoading bool
	locationLoading  bool
	locationStatus   string
	errMsg           string
	closed           bool

	wgBg sync.WaitGroup // tracks background query log writes
}

// NewPredictionsView creates a view on the predictions tab
func NewPredictionsView(reports ReportSource, geo *GeoResolver, repo DataRepository, opts ViewOptions) *PredictionsView {
	center := opts.Center
	if center.Validate() != nil {
		center = domain.DefaultLocationQuery()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	doc := mapview.NewDocument()
	canvas := mapview.NewCanvas(doc)
	surface := mapview.NewSurface(doc, canvas)
	reconciler := mapview.NewReconciler(surface)
	if opts.FitDelay > 0 {
		reconciler.SetFitDelay(opts.FitDelay)
	}
	reconciler.SetLocation(opts.Location)

	projector := analytics.NewProjector(opts.Location, opts.Locale)
	projector.Now = now

	v := &PredictionsView{
		ID:         uuid.New(),
		reports:    reports,
		geo:        geo,
		repo:       repo,
		now:        now,
		doc:        doc,
		canvas:     canvas,
		loader:     mapview.NewResourceLoader(doc, opts.Fetcher, opts.ScriptURL, opts.StyleURL),
		surface:    surface,
		reconciler: reconciler,
		projector:  projector,
		index:      spatial.NewIncidentIndex(nil),
		tab:        TabPredictions,
		query:      center,
		zoom:       domain.DefaultZoom,
		style:      domain.StyleStandard,
	}
	surface.OnClick(func(lat, lon float64) {
		v.applyPosition(lat, lon, "click")
	})
	return v
}

// LibraryScript returns the map library script once it is loaded
func (v *PredictionsView) LibraryScript() (mapview.Resource, bool) {
	return v.doc.Script(mapview.ScriptID)
}

// LibraryStylesheet returns the map library stylesheet once it is loaded
func (v *PredictionsView) LibraryStylesheet() (mapview.Resource, bool) {
	return v.doc.Stylesheet(v.loader.StyleMatch())
}

// ActivateTab switches panels. Activating the incidents tab mounts the map
// anchor, loads the map library, binds the map and fetches incidents the
// first time. Leaving it tears the map down.
func (v *PredictionsView) ActivateTab(ctx context.Context, tab Tab) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return domain.ErrViewNotFound
	}
	prev := v.tab
	v.tab = tab
	v.mu.Unlock()

	if tab != TabIncidents {
		if prev == TabIncidents {
			v.unmountMap()
		}
		return nil
	}

	v.doc.MountAnchor(MapAnchor)
	if err := v.loader.EnsureLoaded(ctx); err != nil {
		v.setError(domain.UserMessage(err, "The map could not be loaded"))
		return err
	}

	v.mu.Lock()
	active := v.tab == TabIncidents && !v.closed
	q, zoom, style := v.query, v.zoom, v.style
	v.mu.Unlock()
	if !active || !v.doc.HasAnchor(MapAnchor) {
		log.Printf("[view %s] map library ready but the incidents tab is gone, not binding", v.ID)
		return nil
	}

	h := v.surface.Acquire(MapAnchor, q.Latitude, q.Longitude, zoom)
	if h == nil {
		return nil
	}
	v.surface.SetBaseStyle(h, style)
	v.reconciler.SyncCurrentPosition(h, q.Latitude, q.Longitude)

	v.mu.Lock()
	fetched, loading := v.incidentsFetched, v.incidentsLoading
	if fetched {
		// A fresh map instance starts without markers
		v.lastSync = v.reconciler.SyncIncidents(h, v.incidents)
	}
	v.mu.Unlock()

	if !fetched && !loading {
		log.Printf("[view %s] loading incidents automatically", v.ID)
		// Failures are already reported through the view error
		_ = v.FetchIncidents(ctx)
	}
	return nil
}

// SetLocation applies a location change from direct input
func (v *PredictionsView) SetLocation(upd LocationUpdate) (domain.LocationQuery, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return domain.LocationQuery{}, domain.ErrViewNotFound
	}
	q := v.query
	zoom := v.zoom
	if upd.Latitude != nil {
		q.Latitude = *upd.Latitude
	}
	if upd.Longitude != nil {
		q.Longitude = *upd.Longitude
	}
	if upd.Radius != nil {
		q.Radius = *upd.Radius
	}
	if upd.IncidentType != nil {
		q.IncidentType = *upd.IncidentType
	}
	if upd.Zoom != nil {
		zoom = *upd.Zoom
	}
	if err := q.Validate(); err != nil {
		v.mu.Unlock()
		return v.Query(), err
	}
	if zoom < domain.MinZoom || zoom > domain.MaxZoom {
		v.mu.Unlock()
		return v.Query(), fmt.Errorf("service: zoom %d outside [%d, %d]", zoom, domain.MinZoom, domain.MaxZoom)
	}
	v.query = q
	v.zoom = zoom
	v.syncViewportLocked()
	v.mu.Unlock()

	v.logQuery(q, "input")
	return q, nil
}

// Zoom changes the zoom level by delta, bounded to the map limits
func (v *PredictionsView) Zoom(delta int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	zoom := v.zoom + delta
	if zoom < domain.MinZoom {
		zoom = domain.MinZoom
	}
	if zoom > domain.MaxZoom {
		zoom = domain.MaxZoom
	}
	v.zoom = zoom
	v.syncViewportLocked()
	return zoom
}

// Click forwards a click on the map. It reports false when no map is bound.
func (v *PredictionsView) Click(lat, lon float64) bool {
	if v.surface.Current() == nil {
		return false
	}
	m, ok := v.canvas.Map(MapAnchor)
	if !ok {
		return false
	}
	m.Click(lat, lon)
	return true
}

// ToggleStyle switches between standard and satellite tiles. Without a
// bound map nothing changes.
func (v *PredictionsView) ToggleStyle() (domain.BaseStyle, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.style.Toggle()
	if !v.surface.SetBaseStyle(v.surface.Current(), next) {
		return v.style, false
	}
	v.style = next
	return next, true
}

// DetectLocation moves the query to the device position
func (v *PredictionsView) DetectLocation(ctx context.Context) DeviceLocation {
	v.mu.Lock()
	v.locationLoading = true
	v.locationStatus = "Detecting your position..."
	v.mu.Unlock()

	res := v.geo.DetectDevice(ctx)
	if res.Status == LocationOK {
		v.applyPosition(res.Latitude, res.Longitude, "device")
	}

	v.mu.Lock()
	v.locationLoading = false
	v.locationStatus = res.Message
	v.mu.Unlock()
	return res
}

// SearchAddress moves the query to the best match for text. Blank text
// does nothing.
func (v *PredictionsView) SearchAddress(ctx context.Context, text string) AddressResult {
	if strings.TrimSpace(text) == "" {
		return v.geo.ResolveAddress(ctx, text)
	}

	v.mu.Lock()
	v.locationLoading = true
	v.locationStatus = "Searching for the address..."
	v.mu.Unlock()

	res := v.geo.ResolveAddress(ctx, text)
	if res.Status == AddressFound {
		v.applyPosition(res.Latitude, res.Longitude, "search")
	}

	v.mu.Lock()
	v.locationLoading = false
	v.locationStatus = res.Message
	v.mu.Unlock()
	return res
}

// FetchIncidents reloads the incident snapshot and syncs the markers. When
// fetches overlap, only the latest one is applied.
func (v *PredictionsView) FetchIncidents(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return domain.ErrViewNotFound
	}
	v.incidentSeq++
	seq := v.incidentSeq
	typ := v.query.IncidentType
	v.incidentsLoading = true
	v.errMsg = ""
	v.mu.Unlock()

	records, err := v.reports.Incidents(ctx, typ, IncidentLimit)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.incidentSeq {
		log.Printf("[view %s] dropping stale incident response", v.ID)
		return nil
	}
	v.incidentsLoading = false
	if err != nil {
		v.errMsg = domain.UserMessage(err, "Failed to fetch incidents")
		return err
	}

	v.incidents = records
	v.incidentsFetched = true
	v.index.Replace(records)
	if h := v.surface.Current(); h != nil {
		v.lastSync = v.reconciler.SyncIncidents(h, records)
	}
	return nil
}

// Predict fetches incident predictions for the current query
func (v *PredictionsView) Predict(ctx context.Context) error {
	q, err := v.beginRequest()
	if err != nil {
		return err
	}
	resp, err := v.reports.Predictions(ctx, q, v.now())

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false
	if err != nil {
		v.errMsg = domain.UserMessage(err, "Failed to predict incidents")
		return err
	}
	v.predictions = resp
	return nil
}

// PeakTimes fetches the peak hours and days for the current query
func (v *PredictionsView) PeakTimes(ctx context.Context) error {
	q, err := v.beginRequest()
	if err != nil {
		return err
	}
	resp, err := v.reports.PeakTimes(ctx, q)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false
	if err != nil {
		v.errMsg = domain.UserMessage(err, "Failed to fetch peak times")
		return err
	}
	v.peakTimes = resp
	return nil
}

// Query returns the current location query
func (v *PredictionsView) Query() domain.LocationQuery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// MapState exports the bound map for the browser page
func (v *PredictionsView) MapState() (mapview.MapState, bool) {
	if v.surface.Current() == nil {
		return mapview.MapState{}, false
	}
	m, ok := v.canvas.Map(MapAnchor)
	if !ok {
		return mapview.MapState{}, false
	}
	return m.State(), true
}

// Close releases the map and waits for background writes
func (v *PredictionsView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.unmountMap()
	v.wgBg.Wait()
	log.Printf("[view %s] closed", v.ID)
}

func (v *PredictionsView) beginRequest() (domain.LocationQuery, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.LocationQuery{}, domain.ErrViewNotFound
	}
	v.loading = true
	v.errMsg = ""
	return v.query, nil
}

func (v *PredictionsView) unmountMap() {
	v.reconciler.Stop()
	v.surface.Release(v.surface.Current())
	v.doc.UnmountAnchor(MapAnchor)
}

// applyPosition moves the query to lat/lon, keeping radius and type
func (v *PredictionsView) applyPosition(lat, lon float64, source string) {
	if !domain.ValidLatLon(lat, lon) {
		return
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.query = v.query.WithPosition(lat, lon)
	q := v.query
	v.syncViewportLocked()
	v.mu.Unlock()

	v.logQuery(q, source)
}

// syncViewportLocked recenters the map and moves the position marker
func (v *PredictionsView) syncViewportLocked() {
	h := v.surface.Current()
	if h == nil {
		return
	}
	v.surface.Recenter(h, v.query.Latitude, v.query.Longitude, v.zoom)
	v.reconciler.SyncCurrentPosition(h, v.query.Latitude, v.query.Longitude)
}

func (v *PredictionsView) setError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errMsg = msg
}

// logQuery persists a location change asynchronously
func (v *PredictionsView) logQuery(q domain.LocationQuery, source string) {
	if v.repo == nil {
		return
	}
	entry := domain.QueryLogEntry{
		ViewID:    v.ID.String(),
		Query:     q,
		Source:    source,
		Timestamp: v.now(),
	}
	v.wgBg.Add(1)
	go func() {
		defer v.wgBg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.repo.SaveQueryLog(ctx, entry); err != nil {
			log.Printf("[view %s] failed to save query log: %v", v.ID, err)
		}
	}()
}
