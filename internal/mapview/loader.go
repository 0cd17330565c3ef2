package mapview

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roadwatch/console/internal/domain"
)

const loadTimeout = 20 * time.Second

// Fetcher retrieves an external resource body
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches resources over HTTP
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPFetcher creates a fetcher with a bounded timeout
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  userAgent,
	}
}

// Fetch performs a GET and returns the body of a 200 response
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: GET %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetcher: GET %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetcher: failed to read body: %w", err)
	}
	return body, nil
}

// CachingFetcher memoizes successful fetches so every view document can be
// filled without downloading the library again. Failures are not cached.
type CachingFetcher struct {
	next Fetcher

	mu     sync.RWMutex
	bodies map[string][]byte
	group  singleflight.Group
}

// NewCachingFetcher wraps next with a body cache
func NewCachingFetcher(next Fetcher) *CachingFetcher {
	return &CachingFetcher{
		next:   next,
		bodies: make(map[string][]byte),
	}
}

// Fetch returns the cached body of url, fetching it once on a miss
func (f *CachingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.RLock()
	body, ok := f.bodies[url]
	f.mu.RUnlock()
	if ok {
		return body, nil
	}

	v, err, _ := f.group.Do(url, func() (interface{}, error) {
		body, err := f.next.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.bodies[url] = body
		f.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// ResourceLoader makes sure the map library script and stylesheet are in a
// document exactly once. Concurrent callers share one load.
type ResourceLoader struct {
	doc        *Document
	fetcher    Fetcher
	scriptURL  string
	styleURL   string
	styleMatch string

	group singleflight.Group
}

// NewResourceLoader creates a loader for the given library URLs
func NewResourceLoader(doc *Document, fetcher Fetcher, scriptURL, styleURL string) *ResourceLoader {
	return &ResourceLoader{
		doc:        doc,
		fetcher:    fetcher,
		scriptURL:  scriptURL,
		styleURL:   styleURL,
		styleMatch: path.Base(styleURL),
	}
}

// StyleMatch is the href fragment identifying the library stylesheet
func (l *ResourceLoader) StyleMatch() string {
	return l.styleMatch
}

// Loaded reports whether both resources are present
func (l *ResourceLoader) Loaded() bool {
	return l.doc.HasScript(ScriptID) && l.doc.HasStylesheet(l.styleMatch)
}

// EnsureLoaded returns once the library is available. A failure returns a
// *domain.ResourceLoadError; calling again retries.
func (l *ResourceLoader) EnsureLoaded(ctx context.Context) error {
	if l.Loaded() {
		return nil
	}

	ch := l.group.DoChan("map-library", func() (interface{}, error) {
		// The shared load outlives any single caller
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return nil, l.load(loadCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return &domain.ResourceLoadError{Resource: l.scriptURL, Err: ctx.Err()}
	}
}

func (l *ResourceLoader) load(ctx context.Context) error {
	if !l.doc.HasStylesheet(l.styleMatch) {
		body, err := l.fetcher.Fetch(ctx, l.styleURL)
		if err != nil {
			log.Printf("[mapview] stylesheet load failed: %v", err)
			return &domain.ResourceLoadError{Resource: l.styleURL, Err: err}
		}
		l.doc.InsertStylesheet(Resource{ID: "leaflet-style", Href: l.styleURL, Body: body}, l.styleMatch)
	}

	if !l.doc.HasScript(ScriptID) {
		body, err := l.fetcher.Fetch(ctx, l.scriptURL)
		if err != nil {
			log.Printf("[mapview] script load failed: %v", err)
			return &domain.ResourceLoadError{Resource: l.scriptURL, Err: err}
		}
		l.doc.InsertScript(Resource{ID: ScriptID, Href: l.scriptURL, Body: body})
		log.Printf("[mapview] map library loaded from %s", l.scriptURL)
	}
	return nil
}
