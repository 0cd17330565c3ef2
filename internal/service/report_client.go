package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roadwatch/console/internal/domain"
)

// IncidentLimit is the number of reports fetched for the incidents tab
const IncidentLimit = 500

// TokenProvider supplies the bearer token of the current session.
// An empty token means the session is over.
type TokenProvider interface {
	Token() string
}

// StaticToken is a fixed bearer token
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// ReportClient talks to the report and prediction API
type ReportClient struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// NewReportClient creates a new report API client
func NewReportClient(baseURL string, tokens TokenProvider, timeout time.Duration) *ReportClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ReportClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Incidents fetches up to limit reports, optionally of one type
func (c *ReportClient) Incidents(ctx context.Context, typ domain.IncidentType, limit int) ([]domain.IncidentRecord, error) {
	params := url.Values{}
	if typ != "" {
		params.Set("type", string(typ))
	}
	params.Set("limit", strconv.Itoa(limit))

	var resp domain.IncidentsResponse
	if err := c.get(ctx, "reports/all", params, &resp, "Failed to fetch incidents"); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &domain.FetchError{
			Endpoint: "reports/all",
			Message:  "Failed to fetch incidents: " + resp.Message,
		}
	}
	if resp.Reports == nil {
		resp.Reports = []domain.IncidentRecord{}
	}
	if resp.Skipped > 0 {
		log.Printf("[reports] skipped %d undecodable reports", resp.Skipped)
	}
	log.Printf("[reports] %d incidents fetched", len(resp.Reports))
	return resp.Reports, nil
}

// Predictions fetches incident predictions around q for date
func (c *ReportClient) Predictions(ctx context.Context, q domain.LocationQuery, date time.Time) (*domain.PredictionsResponse, error) {
	params := locationParams(q)
	params.Set("date", date.UTC().Format(time.RFC3339Nano))

	var resp domain.PredictionsResponse
	if err := c.get(ctx, "predictions/incidents", params, &resp, "Failed to predict incidents"); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, requestFailed("predictions/incidents", resp.Message)
	}
	return &resp, nil
}

// PeakTimes fetches peak hours and days around q
func (c *ReportClient) PeakTimes(ctx context.Context, q domain.LocationQuery) (*domain.PeakTimesResponse, error) {
	params := locationParams(q)
	if q.IncidentType != "" {
		params.Set("type", string(q.IncidentType))
	}

	var resp domain.PeakTimesResponse
	if err := c.get(ctx, "predictions/peakTimes", params, &resp, "Failed to fetch peak times"); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, requestFailed("predictions/peakTimes", resp.Message)
	}
	return &resp, nil
}

// get performs an authenticated GET and decodes the JSON body into out.
// fallback is the user message when the server gives none.
func (c *ReportClient) get(ctx context.Context, endpoint string, params url.Values, out any, fallback string) error {
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" {
		return domain.ErrSessionExpired
	}

	u := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("reports: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.FetchError{Endpoint: endpoint, Message: fallback, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &domain.FetchError{Endpoint: endpoint, Status: resp.StatusCode, Message: fallback, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverMessage(body)
		if msg == "" {
			msg = fallback
		}
		return &domain.FetchError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  msg,
			Err:      fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.FetchError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  fallback,
			Err:      fmt.Errorf("unexpected response shape: %w", err),
		}
	}
	return nil
}

func locationParams(q domain.LocationQuery) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(q.Radius))
	return params
}

func requestFailed(endpoint, message string) error {
	if message == "" {
		message = "unknown error"
	}
	return &domain.FetchError{Endpoint: endpoint, Message: "Request failed: " + message}
}

func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

