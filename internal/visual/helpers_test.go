package visual

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/rasterize"
	"github.com/inamate/vecanim/internal/texture"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestManager(t *testing.T, loader Loader) *Manager {
	t.Helper()
	if loader == nil {
		loader = AssetLoader{Dir: t.TempDir()}
	}
	m := NewManager(Config{
		Workers:        2,
		BridgeCapacity: 64,
		FrameCacheSize: 16,
		Loader:         loader,
		Device:         texture.NewMemoryDevice(),
		Pool:           texture.NewPool(),
		Logger:         discard,
	})
	t.Cleanup(m.Close)
	return m
}

// recorder keeps every signal delivered by ProcessEvents.
type recorder struct {
	mu   sync.Mutex
	sigs []rasterize.Signal
}

func (r *recorder) add(sigs []rasterize.Signal) {
	r.mu.Lock()
	r.sigs = append(r.sigs, sigs...)
	r.mu.Unlock()
}

func (r *recorder) count(kind rasterize.SignalKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sigs {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// pump runs the UI tick until cond holds or two seconds pass.
func pump(t *testing.T, m *Manager, rec *recorder, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		sigs := m.ProcessEvents()
		m.FlushTextures()
		if rec != nil {
			rec.add(sigs)
		}
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// gateLoader holds every load until release is closed.
type gateLoader struct {
	inner   Loader
	release chan struct{}
}

func (g *gateLoader) Load(ctx context.Context, url string) (*engine.Animation, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.Load(ctx, url)
}
