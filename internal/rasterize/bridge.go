package rasterize

import (
	"sync"
	"sync/atomic"
)

type SignalKind int

const (
	// FrameReady: a new frame was handed to the texture.
	FrameReady SignalKind = iota
	ResourceReady
	ResourceFailed
	// AnimationFinished: playback stopped; see Signal.LoopComplete.
	AnimationFinished
	// RenderRequest asks the renderer for one more render even when it
	// renders on demand. Pause emits it.
	RenderRequest
)

func (k SignalKind) String() string {
	switch k {
	case FrameReady:
		return "FrameReady"
	case ResourceReady:
		return "ResourceReady"
	case ResourceFailed:
		return "ResourceFailed"
	case AnimationFinished:
		return "AnimationFinished"
	case RenderRequest:
		return "RenderRequest"
	}
	return "Unknown"
}

// Signal is a message from a worker to the UI goroutine.
type Signal struct {
	Owner        string
	Kind         SignalKind
	Frame        int
	LoopComplete bool
	Err          error
}

// Bridge is a bounded FIFO of signals from workers to the UI goroutine.
// Posting never blocks. Consecutive FrameReady signals from one owner
// collapse into the newest; when the queue is full further FrameReady signals
// are dropped, while lifecycle signals are always kept.
type Bridge struct {
	mu       sync.Mutex
	queue    []Signal
	capacity int
	notify   chan struct{}
	dropped  atomic.Uint64
}

func NewBridge(capacity int) *Bridge {
	return &Bridge{
		queue:    make([]Signal, 0, capacity),
		capacity: max(capacity, 1),
		notify:   make(chan struct{}, 1),
	}
}

// Post enqueues s and reports whether it was kept.
func (b *Bridge) Post(s Signal) bool {
	b.mu.Lock()
	if s.Kind == FrameReady {
		if n := len(b.queue); n > 0 {
			tail := &b.queue[n-1]
			if tail.Kind == FrameReady && tail.Owner == s.Owner {
				*tail = s
				b.mu.Unlock()
				return true
			}
		}
		if len(b.queue) >= b.capacity {
			b.mu.Unlock()
			b.dropped.Add(1)
			return false
		}
	}
	b.queue = append(b.queue, s)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// Notify is signalled after a Post; a UI loop can select on it.
func (b *Bridge) Notify() <-chan struct{} { return b.notify }

// Drain returns and removes every queued signal in posting order.
func (b *Bridge) Drain() []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	out := b.queue
	b.queue = make([]Signal, 0, b.capacity)
	return out
}

func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped counts FrameReady signals discarded because the queue was full.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }
