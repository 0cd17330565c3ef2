package mapview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/console/internal/domain"
)

const (
	testScriptURL = "https://unpkg.com/leaflet@1.7.1/dist/leaflet.js"
	testStyleURL  = "https://unpkg.com/leaflet@1.7.1/dist/leaflet.css"
)

type stubFetcher struct {
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Bool
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return []byte("/* " + url + " */"), nil
}

func loadedDocument(t *testing.T) *Document {
	t.Helper()
	doc := NewDocument()
	loader := NewResourceLoader(doc, &stubFetcher{}, testScriptURL, testStyleURL)
	require.NoError(t, loader.EnsureLoaded(context.Background()))
	return doc
}

func TestEnsureLoadedInsertsResourcesOnce(t *testing.T) {
	doc := NewDocument()
	fetcher := &stubFetcher{delay: 20 * time.Millisecond}
	loader := NewResourceLoader(doc, fetcher, testScriptURL, testStyleURL)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = loader.EnsureLoaded(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	scripts, styles := doc.ResourceCount()
	assert.Equal(t, 1, scripts)
	assert.Equal(t, 1, styles)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	// Already loaded: no further fetches
	require.NoError(t, loader.EnsureLoaded(context.Background()))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestEnsureLoadedFailureIsRetryable(t *testing.T) {
	doc := NewDocument()
	fetcher := &stubFetcher{}
	fetcher.fail.Store(true)
	loader := NewResourceLoader(doc, fetcher, testScriptURL, testStyleURL)

	err := loader.EnsureLoaded(context.Background())
	var loadErr *domain.ResourceLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.False(t, loader.Loaded())

	fetcher.fail.Store(false)
	require.NoError(t, loader.EnsureLoaded(context.Background()))
	assert.True(t, loader.Loaded())
	assert.True(t, doc.HasScript(ScriptID))
}

func TestEnsureLoadedSkipsExistingStylesheet(t *testing.T) {
	doc := NewDocument()
	doc.InsertStylesheet(Resource{ID: "app", Href: "/static/leaflet.css"}, "leaflet.css")
	fetcher := &stubFetcher{}
	loader := NewResourceLoader(doc, fetcher, testScriptURL, testStyleURL)

	require.NoError(t, loader.EnsureLoaded(context.Background()))
	_, styles := doc.ResourceCount()
	assert.Equal(t, 1, styles)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestCachingFetcherSharesBodies(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("L={}"))
	}))
	defer srv.Close()

	fetcher := NewCachingFetcher(NewHTTPFetcher("test"))
	for i := 0; i < 3; i++ {
		loader := NewResourceLoader(NewDocument(), fetcher, srv.URL+"/leaflet.js", srv.URL+"/leaflet.css")
		require.NoError(t, loader.EnsureLoaded(context.Background()))
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcherRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher("test").Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}
