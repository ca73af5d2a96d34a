// Package texture hands rasterized frames to the compositor. A Handoff sits
// between one rasterize task and one display texture and implements the
// synchronous, fast-track and native transfer modes.
package texture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/inamate/vecanim/internal/typeid"
)

var (
	ErrDestroyed   = errors.New("texture: destroyed")
	ErrInvalidSize = errors.New("texture: invalid size")
)

// Descriptor describes a texture to create.
type Descriptor struct {
	Label  string
	Size   gputypes.Extent3D
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// DisplayDescriptor is the descriptor of a sampled RGBA display texture.
func DisplayDescriptor(label string, width, height int) Descriptor {
	return Descriptor{
		Label: label,
		Size: gputypes.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}
}

// Texture is a display texture owned by the compositor.
type Texture interface {
	ID() string
	Size() gputypes.Extent3D
	Format() gputypes.TextureFormat
	// Write uploads src, which must match the texture size.
	Write(src *image.RGBA) error
	Destroy()
	IsDestroyed() bool
}

// NativeTexture is a texture whose storage the rasterizer may write into
// directly. Lock hands out the storage; Unlock returns it and, when publish
// is set, makes the new contents visible.
type NativeTexture interface {
	Texture
	Lock() (*image.RGBA, error)
	Unlock(publish bool)
	// Resize reallocates the storage; the texture keeps its identity.
	Resize(width, height int) error
}

// Device creates textures.
type Device interface {
	CreateTexture(desc Descriptor) (Texture, error)
}

// MemoryDevice keeps textures in process memory. It backs the headless
// server and CLI.
type MemoryDevice struct {
	mu      sync.Mutex
	created int
	live    int
}

func NewMemoryDevice() *MemoryDevice { return &MemoryDevice{} }

func (d *MemoryDevice) CreateTexture(desc Descriptor) (Texture, error) {
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return nil, fmt.Errorf("create %q %dx%d: %w", desc.Label, desc.Size.Width, desc.Size.Height, ErrInvalidSize)
	}
	d.mu.Lock()
	d.created++
	d.live++
	d.mu.Unlock()
	return &MemoryTexture{
		id:     typeid.NewTextureID(),
		device: d,
		desc:   desc,
		pix:    image.NewRGBA(image.Rect(0, 0, int(desc.Size.Width), int(desc.Size.Height))),
	}, nil
}

// Live returns the number of textures created and not yet destroyed.
func (d *MemoryDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Created returns the number of textures ever created.
func (d *MemoryDevice) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

func (d *MemoryDevice) released() {
	d.mu.Lock()
	d.live--
	d.mu.Unlock()
}

// MemoryTexture is an RGBA texture in process memory. It implements
// NativeTexture: Lock hands out a back buffer that Unlock(true) publishes,
// so readers see the last published contents and never wait on a writer.
type MemoryTexture struct {
	id     string
	device *MemoryDevice

	// write is held from Lock to Unlock.
	write sync.Mutex

	mu        sync.Mutex
	desc      Descriptor
	pix       *image.RGBA
	back      *image.RGBA
	version   uint64
	destroyed bool
}

func (t *MemoryTexture) ID() string { return t.id }

func (t *MemoryTexture) Size() gputypes.Extent3D {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc.Size
}

func (t *MemoryTexture) Format() gputypes.TextureFormat { return t.desc.Format }

func (t *MemoryTexture) Write(src *image.RGBA) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return ErrDestroyed
	}
	if src.Bounds().Size() != t.pix.Bounds().Size() {
		return fmt.Errorf("write %v into %v: %w", src.Bounds().Size(), t.pix.Bounds().Size(), ErrInvalidSize)
	}
	copyRGBA(t.pix, src)
	t.version++
	return nil
}

func (t *MemoryTexture) Lock() (*image.RGBA, error) {
	t.write.Lock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		t.write.Unlock()
		return nil, ErrDestroyed
	}
	if t.back == nil || t.back.Bounds() != t.pix.Bounds() {
		t.back = image.NewRGBA(t.pix.Bounds())
	}
	return t.back, nil
}

func (t *MemoryTexture) Unlock(publish bool) {
	t.mu.Lock()
	if publish && !t.destroyed && t.back != nil {
		t.pix, t.back = t.back, t.pix
		t.version++
	}
	t.mu.Unlock()
	t.write.Unlock()
}

// Resize must not be called while the storage is locked.
func (t *MemoryTexture) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	t.write.Lock()
	defer t.write.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return ErrDestroyed
	}
	t.desc.Size.Width, t.desc.Size.Height = uint32(width), uint32(height)
	t.pix = image.NewRGBA(image.Rect(0, 0, width, height))
	t.back = nil
	t.version++
	return nil
}

func (t *MemoryTexture) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.pix, t.back = nil, nil
	t.device.released()
}

func (t *MemoryTexture) IsDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// Version counts writes; it changes whenever the contents do.
func (t *MemoryTexture) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Image returns a copy of the current contents.
func (t *MemoryTexture) Image() (*image.RGBA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, ErrDestroyed
	}
	out := image.NewRGBA(t.pix.Bounds())
	copy(out.Pix, t.pix.Pix)
	return out, nil
}

func copyRGBA(dst, src *image.RGBA) {
	if dst.Stride == src.Stride && len(dst.Pix) == len(src.Pix) {
		copy(dst.Pix, src.Pix)
		return
	}
	h := min(dst.Bounds().Dy(), src.Bounds().Dy())
	row := min(dst.Bounds().Dx(), src.Bounds().Dx()) * 4
	for y := range h {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+row], src.Pix[y*src.Stride:y*src.Stride+row])
	}
}
