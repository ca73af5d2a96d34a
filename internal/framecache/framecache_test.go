package framecache

import (
	"image"
	"image/color"
	"testing"
)

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPutGet(t *testing.T) {
	c := New(8)
	red := color.RGBA{R: 255, A: 255}
	src := filled(4, 4, red)
	c.Put(3, src)

	// Mutating the source must not affect the cached copy.
	src.SetRGBA(0, 0, color.RGBA{})

	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if !c.Get(3, dst) {
		t.Fatal("expected hit for frame 3")
	}
	if got := dst.RGBAAt(0, 0); got != red {
		t.Errorf("cached pixel = %v, want %v", got, red)
	}
	if c.Get(4, dst) {
		t.Error("unexpected hit for frame 4")
	}
}

func TestSizeIsPartOfKey(t *testing.T) {
	c := New(8)
	c.Put(1, filled(4, 4, color.RGBA{G: 255, A: 255}))
	if c.Get(1, image.NewRGBA(image.Rect(0, 0, 8, 8))) {
		t.Fatal("frame cached at 4x4 must not satisfy an 8x8 request")
	}
}

func TestClearAndStats(t *testing.T) {
	c := New(4)
	for i := range 4 {
		c.Put(i, filled(2, 2, color.RGBA{A: 255}))
	}
	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
	c.Get(0, dst)
	c.Get(99, dst)

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats hits=%d misses=%d, want 1/1", st.Hits, st.Misses)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}
