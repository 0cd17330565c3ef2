package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentRecordDecodesMalformedFieldsAsUnusable(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"text coordinate", `{"_id":"a","location":{"coordinates":["x",48.85]}}`},
		{"null coordinate", `{"_id":"a","location":{"coordinates":[null,48.85]}}`},
		{"coordinates object", `{"_id":"a","location":{"coordinates":{"lon":2}}}`},
		{"location string", `{"_id":"a","location":"Paris"}`},
		{"single value", `{"_id":"a","location":{"coordinates":[2.35]}}`},
		{"missing location", `{"_id":"a"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec IncidentRecord
			require.NoError(t, json.Unmarshal([]byte(tc.body), &rec))
			assert.Equal(t, "a", rec.ID)
			_, _, ok := rec.LatLon()
			assert.False(t, ok)
		})
	}
}

func TestIncidentRecordTimestamp(t *testing.T) {
	var rec IncidentRecord
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"a","location":{"type":"Point","coordinates":[2.35,48.85]},"createdAt":"2026-10-18T08:30:00Z"}`), &rec))
	assert.Equal(t, time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC), rec.CreatedAt.UTC())
	lat, lon, ok := rec.LatLon()
	assert.True(t, ok)
	assert.Equal(t, 48.85, lat)
	assert.Equal(t, 2.35, lon)

	for _, body := range []string{`{"createdAt":""}`, `{"createdAt":"yesterday"}`, `{"createdAt":null}`, `{"createdAt":12}`} {
		var r IncidentRecord
		require.NoError(t, json.Unmarshal([]byte(body), &r), body)
		assert.True(t, r.CreatedAt.IsZero(), body)
	}
}

func TestIncidentsResponseSkipsUndecodableEntries(t *testing.T) {
	var resp IncidentsResponse
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"reports":[{"_id":"a"},{"_id":"b","upvotes":"many"},"junk"]}`), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "a", resp.Reports[0].ID)
	assert.Equal(t, 2, resp.Skipped)

	assert.Error(t, json.Unmarshal([]byte(`{"success":true,"reports":{"0":1}}`), &resp))
}
