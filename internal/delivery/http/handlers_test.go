package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/console/internal/analytics"
	"github.com/roadwatch/console/internal/domain"
	"github.com/roadwatch/console/internal/locator"
	"github.com/roadwatch/console/internal/repository/postgres"
	"github.com/roadwatch/console/internal/service"
)

type libraryFetcher struct{}

func (libraryFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return []byte("/* " + url + " */"), nil
}

type fakeReports struct {
	err error
}

func (f fakeReports) Incidents(ctx context.Context, typ domain.IncidentType, limit int) ([]domain.IncidentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.IncidentRecord{{
		ID:        "r1",
		Type:      domain.IncidentAccident,
		Location:  domain.GeoJSONPoint{Type: "Point", Coordinates: []float64{2.3522, 48.8566}},
		Count:     3,
		CreatedAt: time.Now(),
	}}, nil
}

func (f fakeReports) Predictions(ctx context.Context, q domain.LocationQuery, date time.Time) (*domain.PredictionsResponse, error) {
	return nil, f.err
}

func (f fakeReports) PeakTimes(ctx context.Context, q domain.LocationQuery) (*domain.PeakTimesResponse, error) {
	return &domain.PeakTimesResponse{Success: true}, f.err
}

func newTestApp(t *testing.T, reports service.ReportSource) *fiber.App {
	t.Helper()
	repo := postgres.NewMockRepository()
	geo := service.NewGeoResolver(locator.StaticLocator{Latitude: 45.75, Longitude: 4.85}, "http://127.0.0.1:1", "", repo)
	views := service.NewViewRegistry(reports, geo, repo, service.ViewOptions{
		ScriptURL: "https://cdn.test/leaflet.js",
		StyleURL:  "https://cdn.test/leaflet.css",
		Fetcher:   libraryFetcher{},
		FitDelay:  time.Millisecond,
		Location:  time.UTC,
		Center:    domain.DefaultLocationQuery(),
	})
	t.Cleanup(views.Close)
	dashboard := service.NewDashboardService(reports, analytics.NewProjector(time.UTC, "en"), domain.DefaultLocationQuery())

	app := fiber.New()
	SetupRoutes(app, views, dashboard, repo)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func createView(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := do(t, app, nethttp.MethodPost, "/api/v1/views", "")
	require.Equal(t, fiber.StatusCreated, status)
	return body["data"].(map[string]any)["id"].(string)
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	status, body := do(t, app, nethttp.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestGetDashboard(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	status, body := do(t, app, nethttp.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Len(t, data["by_day"], 30)
}

func TestViewNotFound(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	for _, path := range []string{"/api/v1/views/nope", "/api/v1/views/1b4e28ba-2fa1-11d2-883f-0016d3cca427"} {
		status, _ := do(t, app, nethttp.MethodGet, path, "")
		assert.Equal(t, fiber.StatusNotFound, status, path)
	}
}

func TestIncidentsTabBindsMap(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	id := createView(t, app)

	status, _ := do(t, app, nethttp.MethodGet, "/api/v1/views/"+id+"/map", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/map/click", `{"latitude":45,"longitude":5}`)
	assert.Equal(t, fiber.StatusConflict, status)

	status, body := do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/tab", `{"tab":"incidents"}`)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ready", data["map"])
	assert.Equal(t, float64(1), data["incidents"].(map[string]any)["count"])

	status, body = do(t, app, nethttp.MethodGet, "/api/v1/views/"+id+"/map", "")
	require.Equal(t, fiber.StatusOK, status)
	features := body["data"].(map[string]any)["features"].(map[string]any)["features"].([]any)
	assert.Len(t, features, 2)

	req := httptest.NewRequest(nethttp.MethodGet, "/views/"+id+"/assets/leaflet.js", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "cdn.test/leaflet.js")

	req = httptest.NewRequest(nethttp.MethodGet, "/views/"+id, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `id="incident-map"`)

	status, body = do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/map/click", `{"latitude":45,"longitude":5}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(45), body["data"].(map[string]any)["latitude"])

	status, _ = do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/tab", `{"tab":"predictions"}`)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = do(t, app, nethttp.MethodGet, "/api/v1/views/"+id+"/map", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTabValidation(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	id := createView(t, app)

	status, _ := do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/tab", `{"tab":"weather"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSetLocation(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	id := createView(t, app)

	status, _ := do(t, app, nethttp.MethodPut, "/api/v1/views/"+id+"/location", `{"latitude":120}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = do(t, app, nethttp.MethodPut, "/api/v1/views/"+id+"/location", `{"radius":50}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := do(t, app, nethttp.MethodPut, "/api/v1/views/"+id+"/location", `{"latitude":43.6,"longitude":1.44,"radius":2000,"type":"POLICE"}`)
	require.Equal(t, fiber.StatusOK, status)
	q := body["data"].(map[string]any)
	assert.Equal(t, 43.6, q["latitude"])
	assert.Equal(t, float64(2000), q["radius"])
	assert.Equal(t, "POLICE", q["type"])

	status, body = do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/map/zoom", `{"delta":-100}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(domain.MinZoom), body["data"].(map[string]any)["zoom"])
}

func TestDetectLocation(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	id := createView(t, app)

	status, body := do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/detect", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Position detected successfully", body["data"].(map[string]any)["message"])

	status, body = do(t, app, nethttp.MethodGet, "/api/v1/queries", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["data"])
}

func TestFetchErrorsMapToStatus(t *testing.T) {
	app := newTestApp(t, fakeReports{err: domain.ErrSessionExpired})
	id := createView(t, app)

	status, _ := do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/predictions", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	app = newTestApp(t, fakeReports{err: &domain.FetchError{Endpoint: "reports/all", Message: "Failed to fetch incidents: down"}})
	id = createView(t, app)
	status, _ = do(t, app, nethttp.MethodPost, "/api/v1/views/"+id+"/incidents", "")
	assert.Equal(t, fiber.StatusBadGateway, status)

	status, body := do(t, app, nethttp.MethodGet, "/api/v1/views/"+id, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Failed to fetch incidents: down", body["data"].(map[string]any)["error"])
}

func TestReleaseView(t *testing.T) {
	app := newTestApp(t, fakeReports{})
	id := createView(t, app)

	status, _ := do(t, app, nethttp.MethodDelete, "/api/v1/views/"+id, "")
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = do(t, app, nethttp.MethodDelete, "/api/v1/views/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
