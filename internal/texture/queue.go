package texture

import (
	"image"
	"sync"
	"sync/atomic"
)

type upload struct {
	buf   *image.RGBA
	frame int
}

// UploadQueue collects fast-track frames for the render step. Each handoff
// has a single slot: a newer frame replaces one that was not flushed yet.
type UploadQueue struct {
	mu          sync.Mutex
	slots       map[*Handoff]upload
	overwritten atomic.Uint64
}

func NewUploadQueue() *UploadQueue {
	return &UploadQueue{slots: make(map[*Handoff]upload)}
}

// put stores buf for h and returns the buffer it replaced, if any.
func (q *UploadQueue) put(h *Handoff, buf *image.RGBA, frame int) *image.RGBA {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev, ok := q.slots[h]
	q.slots[h] = upload{buf: buf, frame: frame}
	if ok {
		q.overwritten.Add(1)
		return prev.buf
	}
	return nil
}

func (q *UploadQueue) remove(h *Handoff) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.slots, h)
}

// Flush uploads every queued frame and returns how many were uploaded. It
// never waits: when a worker holds the queue it returns 0 and the frames go
// out on the next render step.
func (q *UploadQueue) Flush() int {
	if !q.mu.TryLock() {
		return 0
	}
	slots := q.slots
	q.slots = make(map[*Handoff]upload, len(slots))
	q.mu.Unlock()

	n := 0
	for h, u := range slots {
		if h.upload(u.buf, u.frame) {
			n++
		}
	}
	return n
}

func (q *UploadQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.slots)
}

// Overwritten counts frames replaced before they were flushed.
func (q *UploadQueue) Overwritten() uint64 { return q.overwritten.Load() }
