package texture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
)

// Mode selects how frames travel from the worker to the texture.
type Mode int

const (
	// ModeSync parks each frame in a slot; the UI goroutine uploads it with
	// Commit when it handles the FrameReady signal.
	ModeSync Mode = iota
	// ModeFastTrack puts frames on a shared UploadQueue that the render step
	// flushes.
	ModeFastTrack
	// ModeNative lets the rasterizer write into the texture storage.
	ModeNative
)

func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeFastTrack:
		return "fastTrack"
	case ModeNative:
		return "native"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Policy decides when the display texture is given up.
type Policy int

const (
	OnDetach Policy = iota
	OnDestroy
	Never
)

func (p Policy) String() string {
	switch p {
	case OnDetach:
		return "OnDetach"
	case OnDestroy:
		return "OnDestroy"
	case Never:
		return "Never"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "ondetach":
		return OnDetach, nil
	case "ondestroy":
		return OnDestroy, nil
	case "never":
		return Never, nil
	}
	return OnDetach, fmt.Errorf("unknown release policy %q", s)
}

var ErrNativeUnsupported = errors.New("texture: device has no native textures")

type Config struct {
	Mode   Mode
	Policy Policy
	Device Device
	// Pool receives textures released under the Never policy. Defaults to
	// the shared pool.
	Pool *Pool
	// Queue is required in fast-track mode.
	Queue *UploadQueue
	// URL names the animation; it keys the pool.
	URL    string
	Label  string
	Width  int
	Height int
	Logger *slog.Logger
}

// Handoff moves frames of one visual into its display texture. Acquire,
// Present and Abort are called by the rasterize worker; Commit, Attach,
// Detach and Destroy by the UI goroutine.
type Handoff struct {
	mode   Mode
	policy Policy
	device Device
	pool   *Pool
	queue  *UploadQueue
	url    string
	label  string
	logger *slog.Logger

	mu           sync.Mutex
	tex          Texture
	width        int
	height       int
	back         *image.RGBA
	spare        *image.RGBA
	pending      *image.RGBA
	pendingFrame int
	scratch      *image.RGBA
	native       NativeTexture
	locked       NativeTexture
	frame        int
	attached     bool
	destroyed    bool

	superseded atomic.Uint64
}

// NewHandoff creates the handoff and its display texture. The handoff starts
// attached.
func NewHandoff(cfg Config) (*Handoff, error) {
	if cfg.Mode == ModeFastTrack && cfg.Queue == nil {
		return nil, errors.New("texture: fast-track mode needs an upload queue")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := cfg.Pool
	if pool == nil {
		pool = shared
	}
	h := &Handoff{
		mode:     cfg.Mode,
		policy:   cfg.Policy,
		device:   cfg.Device,
		pool:     pool,
		queue:    cfg.Queue,
		url:      cfg.URL,
		label:    cfg.Label,
		logger:   logger,
		width:    max(cfg.Width, 1),
		height:   max(cfg.Height, 1),
		frame:    -1,
		attached: true,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.obtainLocked(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handoff) Mode() Mode     { return h.mode }
func (h *Handoff) Policy() Policy { return h.policy }

// Texture returns the current display texture, nil while released.
func (h *Handoff) Texture() Texture {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tex
}

// Frame returns the frame last written to the texture, -1 if none.
func (h *Handoff) Frame() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// Superseded counts sync frames replaced before they were committed.
func (h *Handoff) Superseded() uint64 { return h.superseded.Load() }

func (h *Handoff) obtainLocked() error {
	if h.tex != nil {
		return nil
	}
	var tex Texture
	if h.policy == Never {
		if t, ok := h.pool.Take(PoolKey{URL: h.url, Width: h.width, Height: h.height}); ok {
			tex = t
			h.logger.Debug("texture reused", "texture", t.ID(), "url", h.url)
		}
	}
	if tex == nil {
		t, err := h.device.CreateTexture(DisplayDescriptor(h.label, h.width, h.height))
		if err != nil {
			return fmt.Errorf("create texture: %w", err)
		}
		tex = t
	}
	if h.mode == ModeNative {
		nt, ok := tex.(NativeTexture)
		if !ok {
			tex.Destroy()
			return ErrNativeUnsupported
		}
		h.native = nt
	}
	h.tex = tex
	return nil
}

// releaseLocked detaches the texture from the handoff. The caller passes
// it to retire after unlocking: a native texture may still be locked by a
// worker that needs h.mu to unlock it.
func (h *Handoff) releaseLocked() Texture {
	if h.queue != nil {
		h.queue.remove(h)
	}
	tex := h.tex
	h.tex, h.native = nil, nil
	h.pending, h.spare, h.scratch = nil, nil, nil
	return tex
}

func (h *Handoff) retire(tex Texture) {
	if tex == nil {
		return
	}
	if h.policy == Never && !tex.IsDestroyed() {
		size := tex.Size()
		h.pool.Put(PoolKey{URL: h.url, Width: int(size.Width), Height: int(size.Height)}, tex)
		h.logger.Debug("texture parked", "texture", tex.ID(), "url", h.url)
		return
	}
	tex.Destroy()
	h.logger.Debug("texture released", "texture", tex.ID())
}

// Resize sets the size of the texture. The texture follows on the next
// frame; a frame rendered at the old size is scaled to fit.
func (h *Handoff) Resize(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.width, h.height = max(width, 1), max(height, 1)
}

// Acquire returns the buffer the next frame is written into. In native mode
// it is the texture storage itself and stays locked until Present or Abort.
func (h *Handoff) Acquire(width, height int) (*image.RGBA, error) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil, ErrDestroyed
	}
	nt := h.native
	if nt == nil {
		buf := h.backLocked(width, height)
		h.mu.Unlock()
		return buf, nil
	}
	h.mu.Unlock()

	if size := nt.Size(); int(size.Width) != width || int(size.Height) != height {
		if err := nt.Resize(width, height); err != nil {
			return nil, fmt.Errorf("resize native texture: %w", err)
		}
	}
	buf, err := nt.Lock()
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.locked = nt
	h.mu.Unlock()
	return buf, nil
}

// backLocked returns a worker buffer of the given size, reusing the spare
// left by the last commit when it fits.
func (h *Handoff) backLocked(width, height int) *image.RGBA {
	if fits(h.back, width, height) {
		return h.back
	}
	if fits(h.spare, width, height) {
		h.back, h.spare = h.spare, nil
		return h.back
	}
	h.back = image.NewRGBA(image.Rect(0, 0, width, height))
	return h.back
}

func fits(img *image.RGBA, width, height int) bool {
	return img != nil && img.Bounds().Dx() == width && img.Bounds().Dy() == height
}

// Present publishes the frame written into the acquired buffer.
func (h *Handoff) Present(frame int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if nt := h.locked; nt != nil {
		h.locked = nil
		nt.Unlock(true)
		h.frame = frame
		return nil
	}
	if h.destroyed {
		return ErrDestroyed
	}
	if h.tex == nil {
		// Released while detached; the frame is not shown.
		return nil
	}

	switch h.mode {
	case ModeSync:
		if h.pending != nil {
			h.superseded.Add(1)
			h.pending, h.back = h.back, h.pending
		} else {
			h.pending, h.back = h.back, nil
		}
		h.pendingFrame = frame
	case ModeFastTrack:
		h.back = h.queue.put(h, h.back, frame)
	}
	return nil
}

// Abort gives the acquired buffer back without publishing it.
func (h *Handoff) Abort() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if nt := h.locked; nt != nil {
		h.locked = nil
		nt.Unlock(false)
	}
}

// NeedsCommit reports whether frames wait for Commit on the UI goroutine.
func (h *Handoff) NeedsCommit() bool { return h.mode == ModeSync }

func (h *Handoff) HasPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending != nil
}

// Commit uploads the frame parked by the worker in sync mode. It reports
// whether a frame was uploaded.
func (h *Handoff) Commit() bool {
	h.mu.Lock()
	buf, frame := h.pending, h.pendingFrame
	h.pending = nil
	h.mu.Unlock()
	if buf == nil {
		return false
	}
	return h.upload(buf, frame)
}

// upload writes buf into the texture, recreating the texture when the
// requested size changed and scaling buf when its size does not match. The
// buffer is kept for reuse.
func (h *Handoff) upload(buf *image.RGBA, frame int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed || h.tex == nil {
		return false
	}
	if size := h.tex.Size(); h.native == nil && (int(size.Width) != h.width || int(size.Height) != h.height) {
		old := h.tex
		h.tex = nil
		old.Destroy()
		if err := h.obtainLocked(); err != nil {
			h.logger.Error("texture resize failed", "error", err)
			return false
		}
	}

	src := buf
	if !fits(buf, h.width, h.height) {
		if !fits(h.scratch, h.width, h.height) {
			h.scratch = image.NewRGBA(image.Rect(0, 0, h.width, h.height))
		}
		draw.BiLinear.Scale(h.scratch, h.scratch.Bounds(), buf, buf.Bounds(), draw.Src, nil)
		src = h.scratch
	}
	if err := h.tex.Write(src); err != nil {
		h.logger.Error("texture upload failed", "frame", frame, "error", err)
		return false
	}
	h.frame = frame
	if h.spare == nil {
		h.spare = buf
	}
	return true
}

// Show writes img directly into the texture, scaling it to fit. It is used
// for placeholder content.
func (h *Handoff) Show(img *image.RGBA) bool {
	buf := image.NewRGBA(img.Bounds())
	copy(buf.Pix, img.Pix)
	if !h.upload(buf, -1) {
		return false
	}
	h.mu.Lock()
	h.spare = nil
	h.mu.Unlock()
	return true
}

// Attach reacquires a texture released on detach.
func (h *Handoff) Attach() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return ErrDestroyed
	}
	h.attached = true
	return h.obtainLocked()
}

// Detach releases the texture under the OnDetach policy.
func (h *Handoff) Detach() {
	h.mu.Lock()
	h.attached = false
	var tex Texture
	if h.policy == OnDetach {
		tex = h.releaseLocked()
	}
	h.mu.Unlock()
	h.retire(tex)
}

func (h *Handoff) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

// Destroy releases the texture, or parks it in the pool under the Never
// policy. Later calls are no-ops. In native mode it waits for a frame being
// written to finish.
func (h *Handoff) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	tex := h.releaseLocked()
	h.destroyed = true
	h.back = nil
	h.attached = false
	h.mu.Unlock()
	h.retire(tex)
}
