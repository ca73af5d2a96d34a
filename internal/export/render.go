package export

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/playback"
)

// framePattern is the ffmpeg input pattern of the rendered frames.
const framePattern = "frame_%04d.png"

// Job describes an offline render of one play range.
type Job struct {
	Anim          *engine.Animation
	Range         playback.Range
	Width, Height int
	// Overrides returns the dynamic properties of a frame; nil renders the
	// document as authored.
	Overrides func(frame int) engine.Overrides
}

// RenderFrames rasterizes every frame of the job's range into dir as
// numbered PNGs starting at frame_0000.png, using up to workers goroutines.
// It returns the number of frames written.
func RenderFrames(ctx context.Context, job Job, dir string, workers int) (int, error) {
	if job.Anim == nil || job.Anim.TotalFrames() == 0 {
		return 0, engine.ErrNoFrames
	}
	if job.Width <= 0 || job.Height <= 0 {
		job.Width, job.Height = job.Anim.NaturalSize()
	}
	rng := job.Range
	if rng.End < rng.Start {
		rng.Start, rng.End = rng.End, rng.Start
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for frame := rng.Start; frame <= rng.End; frame++ {
		idx := frame - rng.Start
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var dyn engine.Overrides
			if job.Overrides != nil {
				dyn = job.Overrides(frame)
			}
			img := image.NewRGBA(image.Rect(0, 0, job.Width, job.Height))
			if err := job.Anim.Rasterize(frame, img, dyn); err != nil {
				return err
			}
			return writePNG(filepath.Join(dir, fmt.Sprintf(framePattern, idx)), img)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return rng.Span() + 1, nil
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}
