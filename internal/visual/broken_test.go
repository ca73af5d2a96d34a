package visual

import (
	"image/color"
	"testing"
)

func TestBrokenImage(t *testing.T) {
	img, err := brokenImage(64, 64)
	if err != nil {
		t.Fatalf("brokenImage: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 64 || got.Y != 64 {
		t.Fatalf("size = %v, want 64x64", got)
	}
	near := func(c color.RGBA, v uint8) bool {
		d := int(c.R) - int(v)
		return d >= -3 && d <= 3 && c.R == c.G && c.G == c.B
	}
	if c := img.RGBAAt(20, 4); !near(c, 0xa0) {
		t.Errorf("dark cell = %v, want #a0a0a0", c)
	}
	if c := img.RGBAAt(12, 4); !near(c, 0xd0) {
		t.Errorf("light cell = %v, want #d0d0d0", c)
	}
	if c := img.RGBAAt(32, 32); c.R < 200 || c.G > 120 {
		t.Errorf("centre = %v, want the red cross", c)
	}
}
