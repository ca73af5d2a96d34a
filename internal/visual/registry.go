package visual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/inamate/vecanim/internal/document"
	"github.com/inamate/vecanim/internal/engine"
)

// ErrLoad is matched by every *LoadError.
var ErrLoad = errors.New("animation load failed")

// LoadError reports an animation that could not be fetched or parsed.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Loader fetches and parses an animation.
type Loader interface {
	Load(ctx context.Context, url string) (*engine.Animation, error)
}

const (
	sampleScheme = "sample://"
	maxDocSize   = 16 << 20
)

// AssetLoader resolves sample://<name> to a built-in document, http(s) URLs
// with a GET request and anything else to a file under Dir.
type AssetLoader struct {
	Dir    string
	Client *http.Client
}

func (l AssetLoader) Load(ctx context.Context, url string) (*engine.Animation, error) {
	switch {
	case strings.HasPrefix(url, sampleScheme):
		name := strings.TrimPrefix(url, sampleScheme)
		doc, ok := document.Sample(name)
		if !ok {
			return nil, fmt.Errorf("unknown sample %q (have %s)", name, strings.Join(document.SampleNames(), ", "))
		}
		return engine.New(doc)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		data, err := l.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return engine.Load(data)
	}

	path := strings.TrimPrefix(url, "file://")
	if !filepath.IsLocal(path) {
		return nil, fmt.Errorf("path %q escapes the asset directory", path)
	}
	f, err := os.Open(filepath.Join(l.Dir, path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDocSize))
	if err != nil {
		return nil, err
	}
	return engine.Load(data)
}

func (l AssetLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocSize))
}

type entry struct {
	anim *engine.Animation
	refs int
}

// Registry shares loaded animations between visuals. Entries are reference
// counted and dropped with their last reference; concurrent first loads of
// one URL share a single load.
type Registry struct {
	loader Loader
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader, entries: make(map[string]*entry)}
}

// Acquire returns the animation for url and takes a reference to it. Load
// failures are returned as *LoadError.
func (r *Registry) Acquire(ctx context.Context, url string) (*engine.Animation, error) {
	r.mu.Lock()
	if e, ok := r.entries[url]; ok {
		e.refs++
		r.mu.Unlock()
		return e.anim, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(url, func() (any, error) {
		return r.loader.Load(ctx, url)
	})
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	anim := v.(*engine.Animation)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[url]
	if !ok {
		e = &entry{anim: anim}
		r.entries[url] = e
	}
	e.refs++
	return e.anim, nil
}

// Release drops one reference to url.
func (r *Registry) Release(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[url]
	if !ok {
		return
	}
	if e.refs--; e.refs <= 0 {
		delete(r.entries, url)
	}
}

// Refs returns the reference count of url.
func (r *Registry) Refs(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[url]; ok {
		return e.refs
	}
	return 0
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
