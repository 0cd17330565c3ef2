package mapview

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/console/internal/domain"
)

const anchor = "incident-map"

func newTestSurface(t *testing.T) (*Surface, *Canvas, *Document) {
	t.Helper()
	doc := loadedDocument(t)
	doc.MountAnchor(anchor)
	canvas := NewCanvas(doc)
	return NewSurface(doc, canvas), canvas, doc
}

func TestAcquireReusesHandle(t *testing.T) {
	surface, canvas, _ := newTestSurface(t)

	h1 := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h1)
	h2 := surface.Acquire(anchor, 45.0, 3.0, 10)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, canvas.Created())
	assert.Equal(t, domain.MapReady, surface.State())
}

func TestAcquireConcurrentCreatesOneInstance(t *testing.T) {
	surface, canvas, _ := newTestSurface(t)

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = surface.Acquire(anchor, 48.85, 2.35, 13)
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, 1, canvas.Created())
}

func TestAcquireWithoutLibrary(t *testing.T) {
	doc := NewDocument()
	doc.MountAnchor(anchor)
	surface := NewSurface(doc, NewCanvas(doc))

	assert.Nil(t, surface.Acquire(anchor, 48.85, 2.35, 13))
	assert.Equal(t, domain.MapUnloaded, surface.State())
}

func TestAcquireAfterAnchorRemoved(t *testing.T) {
	surface, canvas, doc := newTestSurface(t)
	reconciler := NewReconciler(surface)

	// Tab deactivated between the load finishing and the deferred acquire
	doc.UnmountAnchor(anchor)
	h := surface.Acquire(anchor, 48.85, 2.35, 13)
	assert.Nil(t, h)

	res := reconciler.SyncIncidents(h, []domain.IncidentRecord{incident("a", domain.IncidentPolice, 2.35, 48.85, 1)})
	assert.False(t, res.Applied)
	assert.False(t, reconciler.SyncCurrentPosition(h, 48.85, 2.35))
	assert.Equal(t, 0, canvas.Created())
}

func TestReleaseAndReacquire(t *testing.T) {
	surface, canvas, doc := newTestSurface(t)

	h1 := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h1)
	surface.Release(h1)
	assert.Equal(t, domain.MapDestroyed, surface.State())
	assert.Nil(t, surface.Current())

	// Second release is a no-op
	surface.Release(h1)
	surface.Release(nil)

	doc.UnmountAnchor(anchor)
	doc.MountAnchor(anchor)
	h2 := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h2)
	assert.NotSame(t, h1, h2)
	assert.Equal(t, 2, canvas.Created())

	// Stale handle operations do nothing
	assert.False(t, surface.Recenter(h1, 40, 2, 10))
}

func TestRemountedAnchorGetsFreshInstance(t *testing.T) {
	surface, canvas, doc := newTestSurface(t)

	h1 := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h1)
	doc.UnmountAnchor(anchor)
	assert.Nil(t, surface.Current())
	assert.False(t, surface.Recenter(h1, 48.0, 2.0, 12))

	doc.MountAnchor(anchor)
	h2 := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h2)
	assert.NotSame(t, h1, h2)
	assert.Equal(t, 2, canvas.Created())
}

func TestRecenterKeepsOverlays(t *testing.T) {
	surface, canvas, _ := newTestSurface(t)
	reconciler := NewReconciler(surface)
	h := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h)
	require.True(t, reconciler.SyncCurrentPosition(h, 48.85, 2.35))

	require.True(t, surface.Recenter(h, 45.76, 4.83, 11))
	m, ok := canvas.Map(anchor)
	require.True(t, ok)
	state := m.State()
	assert.InDelta(t, 45.76, state.Center.Lat(), 1e-9)
	assert.InDelta(t, 4.83, state.Center.Lon(), 1e-9)
	assert.Equal(t, 11, state.Zoom)
	assert.Len(t, state.Features.Features, 1)

	assert.False(t, surface.Recenter(h, 120, 4.83, 11))
}

func TestSetBaseStyleOnlySwapsTiles(t *testing.T) {
	surface, canvas, _ := newTestSurface(t)
	reconciler := NewReconciler(surface)
	h := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h)
	require.True(t, surface.SetBaseStyle(h, domain.StyleStandard))
	reconciler.SyncCurrentPosition(h, 48.85, 2.35)
	reconciler.SyncIncidents(h, []domain.IncidentRecord{incident("a", domain.IncidentAccident, 2.35, 48.85, 1)})

	require.True(t, surface.SetBaseStyle(h, domain.StyleSatellite))

	m, _ := canvas.Map(anchor)
	var tiles, markers int
	for _, l := range m.Layers() {
		switch l.Kind {
		case LayerTile:
			tiles++
			assert.Contains(t, l.Tile.URL, "arcgisonline")
		case LayerMarker:
			markers++
		}
	}
	assert.Equal(t, 1, tiles)
	assert.Equal(t, 2, markers)
}

func TestClickInvokesCallbackWithoutOverlayChanges(t *testing.T) {
	surface, canvas, _ := newTestSurface(t)
	var gotLat, gotLon float64
	surface.OnClick(func(lat, lon float64) {
		gotLat, gotLon = lat, lon
	})
	h := surface.Acquire(anchor, 48.85, 2.35, 13)
	require.NotNil(t, h)

	m, _ := canvas.Map(anchor)
	before := len(m.Layers())
	m.Click(43.3, 5.4)

	assert.Equal(t, 43.3, gotLat)
	assert.Equal(t, 5.4, gotLon)
	assert.Equal(t, before, len(m.Layers()))
}
