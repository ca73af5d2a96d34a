package rasterize

import (
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inamate/vecanim/internal/engine"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	total int
	fps   float64
	delay time.Duration

	calls    atomic.Int64
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu     sync.Mutex
	frames []int
	dyn    []engine.Overrides
}

func (s *fakeSource) TotalFrames() int   { return s.total }
func (s *fakeSource) FrameRate() float64 { return s.fps }

func (s *fakeSource) Rasterize(frame int, dst *image.RGBA, dyn engine.Overrides) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.dyn = append(s.dyn, dyn)
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) lastDyn() engine.Overrides {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dyn) == 0 {
		return engine.Overrides{}
	}
	return s.dyn[len(s.dyn)-1]
}

type fakeSink struct {
	mu        sync.Mutex
	buf       *image.RGBA
	presented []int
	aborted   int
}

func (s *fakeSink) Acquire(w, h int) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil || s.buf.Bounds().Dx() != w || s.buf.Bounds().Dy() != h {
		s.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return s.buf, nil
}

func (s *fakeSink) Present(frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = append(s.presented, frame)
	return nil
}

func (s *fakeSink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted++
}

func (s *fakeSink) NeedsCommit() bool { return true }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.presented)
}

type harness struct {
	runner *Runner
	bridge *Bridge
	src    *fakeSource
	sink   *fakeSink
	task   *Task
}

func newHarness(t *testing.T, src *fakeSource) *harness {
	t.Helper()
	h := &harness{
		runner: NewRunner(2, discard),
		bridge: NewBridge(64),
		src:    src,
		sink:   &fakeSink{},
	}
	h.task = NewTask(TaskConfig{
		ID:     "vis_test",
		Source: src,
		Sink:   h.sink,
		Bridge: h.bridge,
		Runner: h.runner,
		Width:  8,
		Height: 8,
		Logger: discard,
	})
	t.Cleanup(h.runner.Close)
	return h
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// collect drains the bridge into signals until cond holds.
func (h *harness) collect(t *testing.T, what string, cond func([]Signal) bool) []Signal {
	t.Helper()
	var all []Signal
	waitFor(t, what, func() bool {
		all = append(all, h.bridge.Drain()...)
		return cond(all)
	})
	return all
}

func hasKind(kind SignalKind) func([]Signal) bool {
	return func(sigs []Signal) bool {
		for _, s := range sigs {
			if s.Kind == kind {
				return true
			}
		}
		return false
	}
}
