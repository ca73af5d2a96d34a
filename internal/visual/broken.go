package visual

import (
	"fmt"
	"image"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
)

const (
	brokenSize = 64
	brokenCell = 8
)

// brokenImage paints the placeholder shown for a visual whose animation
// failed to load: a grey checkerboard crossed out in red.
func brokenImage(width, height int) (*image.RGBA, error) {
	width, height = max(width, 1), max(height, 1)
	dc := gg.NewContext(width, height)
	defer dc.Close()

	dc.ClearWithColor(gg.Hex("#d0d0d0"))
	dc.SetHexColor("#a0a0a0")
	for y := 0; y < height; y += brokenCell {
		for x := (y / brokenCell % 2) * brokenCell; x < width; x += 2 * brokenCell {
			dc.DrawRectangle(float64(x), float64(y), brokenCell, brokenCell)
		}
	}
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill checkerboard: %w", err)
	}

	dc.SetHexColor("#e94560")
	dc.SetLineWidth(2)
	dc.MoveTo(0, 0)
	dc.LineTo(float64(width), float64(height))
	dc.MoveTo(float64(width), 0)
	dc.LineTo(0, float64(height))
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("stroke cross: %w", err)
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return out, nil
}
