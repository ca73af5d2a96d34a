// Package visual is the control surface of animated vector visuals. A
// Manager creates visuals, shares loaded animations between them and
// delivers worker signals on the UI goroutine.
package visual

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/inamate/vecanim/internal/rasterize"
	"github.com/inamate/vecanim/internal/texture"
	"github.com/inamate/vecanim/internal/typeid"
)

var ErrClosed = errors.New("visual manager closed")

type Config struct {
	Workers        int
	BridgeCapacity int
	// FrameCacheSize is the number of frames each visual may cache; 0
	// disables caching regardless of enableFrameCache.
	FrameCacheSize int
	Loader         Loader
	Device         texture.Device
	Pool           *texture.Pool
	Logger         *slog.Logger
}

type Manager struct {
	logger    *slog.Logger
	runner    *rasterize.Runner
	bridge    *rasterize.Bridge
	queue     *texture.UploadQueue
	registry  *Registry
	device    texture.Device
	pool      *texture.Pool
	cacheSize int

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	mu      sync.RWMutex
	visuals map[string]*Visual
	closed  bool
}

func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loader := cfg.Loader
	if loader == nil {
		loader = AssetLoader{}
	}
	device := cfg.Device
	if device == nil {
		device = texture.NewMemoryDevice()
	}
	pool := cfg.Pool
	if pool == nil {
		pool = texture.Shared()
	}
	capacity := cfg.BridgeCapacity
	if capacity <= 0 {
		capacity = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:    logger,
		runner:    rasterize.NewRunner(cfg.Workers, logger),
		bridge:    rasterize.NewBridge(capacity),
		queue:     texture.NewUploadQueue(),
		registry:  NewRegistry(loader),
		device:    device,
		pool:      pool,
		cacheSize: max(cfg.FrameCacheSize, 0),
		ctx:       ctx,
		cancel:    cancel,
		visuals:   make(map[string]*Visual),
	}
}

// Bridge exposes the signal queue so a UI loop can wait on Notify.
func (m *Manager) Bridge() *rasterize.Bridge { return m.bridge }

func (m *Manager) Registry() *Registry { return m.registry }

// Create makes a visual for opts. With synchronous loading the animation is
// loaded before Create returns and a load failure is returned as a
// *LoadError next to the visual, which shows the broken placeholder.
// Otherwise loading continues in the background and the outcome arrives as
// ResourceReady or ResourceFailed.
func (m *Manager) Create(opts Options) (*Visual, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	v := newVisual(m, typeid.NewVisualID(), opts)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.visuals[v.id] = v
	m.mu.Unlock()

	m.logger.Info("visual created", "id", v.id, "url", opts.URL, "sync", opts.SynchronousLoading)

	if opts.SynchronousLoading {
		anim, err := m.registry.Acquire(m.ctx, opts.URL)
		v.finishLoad(anim, err)
		return v, err
	}

	m.loads.Add(1)
	go func() {
		defer m.loads.Done()
		anim, err := m.registry.Acquire(m.ctx, opts.URL)
		v.finishLoad(anim, err)
	}()
	return v, nil
}

func (m *Manager) Visual(id string) (*Visual, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.visuals[id]
	return v, ok
}

// IDs returns the IDs of the live visuals in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.visuals))
	for id := range m.visuals {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.visuals, id)
	m.mu.Unlock()
}

func (m *Manager) list() []*Visual {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Visual, 0, len(m.visuals))
	for _, v := range m.visuals {
		out = append(out, v)
	}
	return out
}

// ProcessEvents is the UI tick: it drains the signal queue, commits
// synchronous uploads and runs the visuals' handlers. It never waits for a
// worker and returns the signals it delivered.
func (m *Manager) ProcessEvents() []rasterize.Signal {
	sigs := m.bridge.Drain()
	for _, s := range sigs {
		if v, ok := m.Visual(s.Owner); ok {
			v.handle(s)
		}
	}
	// A FrameReady dropped on a full queue still leaves its frame parked.
	for _, v := range m.list() {
		v.commitPending()
	}
	return sigs
}

// FlushTextures uploads fast-track frames. It is the render step of the
// fast-track mode and never waits for a worker.
func (m *Manager) FlushTextures() int { return m.queue.Flush() }

// Close destroys every visual and stops the workers.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	for _, v := range m.list() {
		v.Destroy()
	}
	m.loads.Wait()
	m.runner.Close()
	m.logger.Info("visual manager closed")
}

func (m *Manager) post(s rasterize.Signal) {
	m.bridge.Post(s)
}
