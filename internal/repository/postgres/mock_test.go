package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/console/internal/domain"
)

var _ domain.DataRepository = (*MockRepository)(nil)
var _ domain.DataRepository = (*PostgresRepository)(nil)

func TestMockGeocodeCache(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()

	_, ok, err := repo.GetGeocode(ctx, "paris")
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.GeocodeResult{Latitude: 48.85, Longitude: 2.35, DisplayName: "Paris, France"}
	require.NoError(t, repo.SaveGeocode(ctx, "paris", want))

	got, ok, err := repo.GetGeocode(ctx, "paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestMockRecentQueriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	for i, src := range []string{"input", "click", "device"} {
		require.NoError(t, repo.SaveQueryLog(ctx, domain.QueryLogEntry{
			ViewID:    "v1",
			Query:     domain.DefaultLocationQuery(),
			Source:    src,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := repo.RecentQueries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "device", got[0].Source)
	assert.Equal(t, "click", got[1].Source)

	empty, err := NewMockRepository().RecentQueries(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
