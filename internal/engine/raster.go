package engine

import (
	"fmt"
	"image"

	"github.com/gogpu/gg"
)

// paint rasterizes cmds into a fresh gg context of size w x h. base maps scene
// coordinates to pixels.
func paint(cmds []DrawCommand, w, h int, base Matrix2D, background string) (*gg.Context, error) {
	dc := gg.NewContext(w, h)
	if background != "" {
		dc.ClearWithColor(gg.Hex(background))
	} else {
		dc.Clear()
	}

	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Op != "path" || len(cmd.Transform) != 6 {
			continue
		}
		var m Matrix2D
		copy(m[:], cmd.Transform)
		dc.SetTransform(base.Multiply(m).GG())

		if visibleColor(cmd.Fill) {
			tracePath(dc, cmd.Path)
			setColor(dc, cmd.Fill, cmd.Opacity)
			if err := dc.Fill(); err != nil {
				dc.Close()
				return nil, fmt.Errorf("fill %s: %w", cmd.ObjectID, err)
			}
		}
		if visibleColor(cmd.Stroke) && cmd.StrokeWidth > 0 {
			tracePath(dc, cmd.Path)
			setColor(dc, cmd.Stroke, cmd.Opacity)
			dc.SetLineWidth(cmd.StrokeWidth * base[0])
			if err := dc.Stroke(); err != nil {
				dc.Close()
				return nil, fmt.Errorf("stroke %s: %w", cmd.ObjectID, err)
			}
		}
	}
	return dc, nil
}

func tracePath(dc *gg.Context, path []PathCommand) {
	dc.ClearPath()
	for _, p := range path {
		switch p.Op() {
		case "M":
			dc.MoveTo(p.Arg(0), p.Arg(1))
		case "L":
			dc.LineTo(p.Arg(0), p.Arg(1))
		case "Q":
			dc.QuadraticTo(p.Arg(0), p.Arg(1), p.Arg(2), p.Arg(3))
		case "C":
			dc.CubicTo(p.Arg(0), p.Arg(1), p.Arg(2), p.Arg(3), p.Arg(4), p.Arg(5))
		case "Z":
			dc.ClosePath()
		}
	}
}

func visibleColor(c string) bool {
	return c != "" && c != "none" && c != "transparent"
}

func setColor(dc *gg.Context, hex string, opacity float64) {
	c := gg.Hex(hex)
	dc.SetRGBA(c.R, c.G, c.B, c.A*clamp01(opacity))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// copyPixels copies the context's RGBA pixmap into dst row by row.
func copyPixels(dc *gg.Context, dst *image.RGBA) {
	pm := dc.ResizeTarget()
	src := pm.Data()
	w, h := pm.Width(), pm.Height()
	b := dst.Bounds()
	rows := min(h, b.Dy())
	cols := min(w, b.Dx()) * 4
	for y := 0; y < rows; y++ {
		srcOff := y * w * 4
		dstOff := dst.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst.Pix[dstOff:dstOff+cols], src[srcOff:srcOff+cols])
	}
}
