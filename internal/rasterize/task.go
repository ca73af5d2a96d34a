// Package rasterize runs playback off the UI goroutine: a Task advances one
// animation's playback state and rasterizes its frames, a Runner schedules
// tasks on worker goroutines and a Bridge carries their signals back.
package rasterize

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/framecache"
	"github.com/inamate/vecanim/internal/playback"
)

// Rasterizer renders single frames. *engine.Animation implements it.
type Rasterizer interface {
	TotalFrames() int
	FrameRate() float64
	Rasterize(frame int, dst *image.RGBA, dyn engine.Overrides) error
}

// Sink receives rasterized frames. Acquire hands out the buffer the next
// frame is written into; Present publishes it and Abort gives it back
// unpublished.
type Sink interface {
	Acquire(width, height int) (*image.RGBA, error)
	Present(frame int) error
	Abort()
	// NeedsCommit reports whether every frame must be announced with a
	// FrameReady signal for the UI goroutine to pick it up.
	NeedsCommit() bool
}

// Change is one queued playback mutation. Changes are applied as a batch
// right before the next frame is computed.
type Change func(m *playback.Machine) error

// minFrameInterval bounds the tick rate at high frame speeds.
const minFrameInterval = 2 * time.Millisecond

// Snapshot is the last committed state of a task.
type Snapshot struct {
	playback.Snapshot
	DroppedFrames            int64
	CacheEnabled             bool
	NotifyAfterRasterization bool
	Width, Height            int
}

type TaskConfig struct {
	ID      string
	Source  Rasterizer
	Markers map[string]playback.Range
	Sink    Sink
	Bridge  *Bridge
	Runner  *Runner
	// Cache is used when frame caching is enabled; nil disables caching.
	Cache  *framecache.Cache
	Width  int
	Height int
	Logger *slog.Logger
}

// Task owns the playback state of one animation instance. UI-side methods
// never block on rasterization: they take the task mutex only for state
// updates, and rasterization runs without it.
type Task struct {
	id       string
	src      Rasterizer
	sink     Sink
	bridge   *Bridge
	runner   *Runner
	cache    *framecache.Cache
	bindings *Bindings
	logger   *slog.Logger
	now      func() time.Time

	sched schedule

	mu           sync.Mutex
	machine      *playback.Machine
	pending      []Change
	width        int
	height       int
	cacheEnabled bool
	notifyAfter  bool
	lastTick     time.Time

	alive    atomic.Bool
	dropped  atomic.Int64
	snapshot atomic.Pointer[Snapshot]
}

func NewTask(cfg TaskConfig) *Task {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Task{
		id:       cfg.ID,
		src:      cfg.Source,
		sink:     cfg.Sink,
		bridge:   cfg.Bridge,
		runner:   cfg.Runner,
		cache:    cfg.Cache,
		bindings: NewBindings(),
		logger:   logger.With("visual", cfg.ID),
		now:      time.Now,
		machine:  playback.New(cfg.Source.TotalFrames(), cfg.Markers),
		width:    max(cfg.Width, 1),
		height:   max(cfg.Height, 1),
	}
	t.alive.Store(true)
	t.publishLocked()
	return t
}

func (t *Task) ID() string { return t.id }

// Snapshot returns the last committed state. It never blocks.
func (t *Task) Snapshot() Snapshot { return *t.snapshot.Load() }

func (t *Task) DroppedFrames() int64 { return t.dropped.Load() }

func (t *Task) Bindings() *Bindings { return t.bindings }

// Alive reports whether results of this task are still delivered.
func (t *Task) Alive() bool { return t.alive.Load() }

// Kill stops delivery of results. A run in progress completes, but its frame
// is neither handed to the sink nor announced.
func (t *Task) Kill() {
	t.alive.Store(false)
	t.runner.Cancel(t)
}

// Play commits queued changes first so a session started from Stopped
// resolves against the newest play range. Starting a session resets the
// dropped frame count.
func (t *Task) Play() {
	t.apply(func(m *playback.Machine) playback.Effect {
		t.commitLocked()
		fresh := m.State() == playback.Stopped
		eff := m.Play()
		if eff.Render {
			t.lastTick = time.Time{}
			if fresh {
				t.dropped.Store(0)
			}
		}
		return eff
	})
}

func (t *Task) Pause() {
	t.runner.Cancel(t)
	if t.apply((*playback.Machine).Pause) {
		t.post(Signal{Kind: RenderRequest})
	}
}

func (t *Task) Stop() {
	t.runner.Cancel(t)
	t.apply((*playback.Machine).Stop)
}

func (t *Task) JumpTo(frame int) {
	t.apply(func(m *playback.Machine) playback.Effect { return m.JumpTo(frame) })
}

// apply runs op under the task lock, reports a finish if op produced one and
// requests a render when asked to. It reports whether a render was requested.
func (t *Task) apply(op func(m *playback.Machine) playback.Effect) bool {
	t.mu.Lock()
	eff := op(t.machine)
	t.publishLocked()
	t.mu.Unlock()

	if eff.Finished {
		t.post(Signal{Kind: AnimationFinished, Frame: eff.Frame, LoopComplete: eff.LoopComplete})
	}
	if eff.Render {
		t.runner.Request(t)
	}
	return eff.Render
}

// Enqueue adds changes to the pending batch and requests a run so the batch
// is committed even when playback is stopped.
func (t *Task) Enqueue(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	t.mu.Lock()
	t.pending = append(t.pending, changes...)
	t.mu.Unlock()
	t.runner.Request(t)
}

// Flush discards queued changes and a queued jump. A run already in progress
// still delivers its frame.
func (t *Task) Flush() {
	t.mu.Lock()
	n := len(t.pending)
	t.pending = nil
	t.machine.DiscardPendingSeek()
	t.mu.Unlock()
	t.logger.Debug("pending changes flushed", "count", n)
}

// SetSize changes the raster target size; cached frames of the old size are
// dropped.
func (t *Task) SetSize(width, height int) {
	t.mu.Lock()
	changed := t.width != width || t.height != height
	t.width, t.height = max(width, 1), max(height, 1)
	t.publishLocked()
	t.mu.Unlock()
	if changed {
		if t.cache != nil {
			t.cache.Clear()
		}
		t.runner.Request(t)
	}
}

func (t *Task) SetCacheEnabled(on bool) {
	t.mu.Lock()
	t.cacheEnabled = on && t.cache != nil
	t.publishLocked()
	t.mu.Unlock()
	if !on && t.cache != nil {
		t.cache.Clear()
	}
}

func (t *Task) SetNotifyAfterRasterization(on bool) {
	t.mu.Lock()
	t.notifyAfter = on
	t.publishLocked()
	t.mu.Unlock()
}

// SetBinding registers a dynamic property and re-renders the current frame.
func (t *Task) SetBinding(b Binding) {
	t.bindings.Set(b)
	t.runner.Request(t)
}

// RequestRender asks for the current frame to be rasterized again.
func (t *Task) RequestRender() { t.runner.Request(t) }

// commitLocked applies the pending change batch to the machine.
func (t *Task) commitLocked() {
	for _, change := range t.pending {
		if err := change(t.machine); err != nil {
			var rerr *playback.RangeError
			if errors.As(err, &rerr) {
				t.logger.Warn("play range update ignored", "error", err)
			} else {
				t.logger.Warn("playback change rejected", "error", err)
			}
		}
	}
	t.pending = nil
}

func (t *Task) publishLocked() {
	t.snapshot.Store(&Snapshot{
		Snapshot:                 t.machine.Snapshot(),
		DroppedFrames:            t.dropped.Load(),
		CacheEnabled:             t.cacheEnabled,
		NotifyAfterRasterization: t.notifyAfter,
		Width:                    t.width,
		Height:                   t.height,
	})
}

// frameInterval is the wall time of one frame at the current speed.
func (t *Task) frameInterval(speed float64) time.Duration {
	fps := t.src.FrameRate()
	if fps <= 0 {
		fps = 60
	}
	d := time.Duration(float64(time.Second) / (fps * speed))
	return max(d, minFrameInterval)
}

// run performs one scheduling step. It returns the delay until the next step
// and whether playback continues.
func (t *Task) run() (time.Duration, bool) {
	if !t.alive.Load() {
		return 0, false
	}
	start := t.now()

	t.mu.Lock()
	t.commitLocked()

	if t.machine.Empty() {
		t.publishLocked()
		t.mu.Unlock()
		return 0, false
	}

	speed := t.machine.Config().FrameSpeed
	interval := t.frameInterval(speed)
	playing := t.machine.State() == playback.Playing

	var eff playback.Effect
	if playing {
		elapsed := 0.0
		if !t.lastTick.IsZero() {
			elapsed = start.Sub(t.lastTick).Seconds() * t.src.FrameRate()
		}
		t.lastTick = start
		eff = t.machine.Advance(elapsed)
	} else {
		eff = playback.Effect{Render: true, Frame: t.machine.CurrentFrame()}
	}
	span := t.machine.PlayRange().Span()
	total := int64(t.machine.TotalFrames())
	w, h := t.width, t.height
	useCache := t.cacheEnabled && t.bindings.Len() == 0
	notify := t.notifyAfter
	t.publishLocked()
	t.mu.Unlock()

	if eff.Finished {
		t.post(Signal{Kind: AnimationFinished, Frame: eff.Frame, LoopComplete: eff.LoopComplete})
	}
	if !eff.Render {
		return 0, false
	}

	if err := t.render(eff.Frame, w, h, useCache, notify); err != nil {
		if t.alive.Load() {
			t.logger.Error("rasterize failed", "frame", eff.Frame, "error", err)
		}
		return 0, false
	}

	continuing := playing && !eff.Finished
	if continuing {
		spent := t.now().Sub(start)
		if over := int64(spent/interval) - 1; over > 0 {
			// A session never reports more drops than the animation has frames.
			over = min(over, int64(span)+1, total-t.dropped.Load())
			if over > 0 {
				t.dropped.Add(over)
				t.logger.Debug("frames dropped", "count", over, "spent", spent, "budget", interval)
			}
		}
	}

	t.mu.Lock()
	if continuing && t.machine.State() == playback.Playing {
		t.machine.MarkRendered()
	}
	t.publishLocked()
	t.mu.Unlock()

	if !continuing {
		return 0, false
	}
	// The next frame is due one interval after this one started; when
	// rasterizing took longer it is due now.
	next := interval - t.now().Sub(start)
	return max(next, 0), true
}

func (t *Task) render(frame, w, h int, useCache, notify bool) error {
	if !t.alive.Load() {
		return nil
	}
	dst, err := t.sink.Acquire(w, h)
	if err != nil {
		return fmt.Errorf("acquire %dx%d: %w", w, h, err)
	}

	hit := useCache && t.cache.Get(frame, dst)
	if !hit {
		dyn, errs := t.bindings.Evaluate(frame)
		for _, e := range errs {
			t.logger.Debug("dynamic property skipped", "error", e)
		}
		if err := t.src.Rasterize(frame, dst, dyn); err != nil {
			t.sink.Abort()
			return err
		}
		if useCache {
			t.cache.Put(frame, dst)
		}
	}

	if !t.alive.Load() {
		t.sink.Abort()
		return nil
	}
	if err := t.sink.Present(frame); err != nil {
		return fmt.Errorf("present frame %d: %w", frame, err)
	}
	if notify || t.sink.NeedsCommit() {
		t.post(Signal{Kind: FrameReady, Frame: frame})
	}
	return nil
}

// post delivers s on the bridge unless the task was killed.
func (t *Task) post(s Signal) {
	if !t.alive.Load() || t.bridge == nil {
		return
	}
	s.Owner = t.id
	t.bridge.Post(s)
}
