// Command vecplay plays one animation headlessly and writes the presented
// frames as PNG files.
//
//	vecplay -config visual.yaml -out frames/ -duration 5s
//
// The config file holds the visual's creation options:
//
//	url: sample://pulse
//	playRange: grow
//	loopCount: 1
//	frameSpeedFactor: 2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gogpu/gg"

	"github.com/inamate/vecanim/internal/document"
	"github.com/inamate/vecanim/internal/visual"
)

type options struct {
	config   string
	assets   string
	out      string
	duration time.Duration
	workers  int
	tickRate int
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "YAML file with the visual options")
	flag.StringVar(&opts.assets, "assets", ".", "directory that relative animation urls resolve against")
	flag.StringVar(&opts.out, "out", "frames", "output directory for the PNG frames")
	flag.DurationVar(&opts.duration, "duration", 10*time.Second, "stop after this long even if playback continues")
	flag.IntVar(&opts.workers, "workers", 2, "rasterization workers")
	flag.IntVar(&opts.tickRate, "tick", 60, "UI ticks per second")
	verbose := flag.Bool("v", false, "debug logging")
	listSamples := flag.Bool("samples", false, "list the built-in sample animations and exit")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gg.SetLogger(logger.With("component", "gg"))

	if *listSamples {
		for _, name := range document.SampleNames() {
			fmt.Println("sample://" + name)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n, err := run(ctx, opts, logger)
	if err != nil {
		logger.Error("vecplay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("done", "frames", n, "out", opts.out)
}

// run plays the configured visual until it finishes, the duration passes
// or ctx is canceled, and returns the number of frames written.
func run(ctx context.Context, opts options, logger *slog.Logger) (int, error) {
	if opts.config == "" {
		return 0, errors.New("-config is required")
	}
	data, err := os.ReadFile(opts.config)
	if err != nil {
		return 0, err
	}
	vopts, err := visual.ParseOptionsYAML(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", opts.config, err)
	}
	vopts.SynchronousLoading = true
	notify := true
	vopts.NotifyAfterRasterization = &notify

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return 0, err
	}

	manager := visual.NewManager(visual.Config{
		Workers:        opts.workers,
		FrameCacheSize: 64,
		Loader:         visual.AssetLoader{Dir: opts.assets},
		Logger:         logger,
	})
	defer manager.Close()

	v, err := manager.Create(vopts)
	if err != nil {
		return 0, err
	}

	written := make(map[int]bool)
	var writeErr error
	v.OnFrameReady(func(v *visual.Visual, frame int) {
		if written[frame] || writeErr != nil {
			return
		}
		if writeErr = writeFrame(v, filepath.Join(opts.out, fmt.Sprintf("frame_%04d.png", frame))); writeErr == nil {
			written[frame] = true
		}
	})
	finished := false
	v.OnAnimationFinished(func(v *visual.Visual, loopComplete bool) {
		finished = true
		logger.Info("animation finished", "loopComplete", loopComplete)
	})

	if err := v.Play(); err != nil {
		return 0, err
	}

	tickRate := max(opts.tickRate, 1)
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()
	deadline := time.After(opts.duration)

	for !finished && writeErr == nil {
		select {
		case <-ctx.Done():
			return len(written), ctx.Err()
		case <-deadline:
			logger.Info("duration reached", "duration", opts.duration)
			finished = true
		case <-ticker.C:
		case <-manager.Bridge().Notify():
		}
		manager.ProcessEvents()
		manager.FlushTextures()
	}
	if writeErr != nil {
		return len(written), writeErr
	}

	s := v.GetPropertySnapshot()
	logger.Info("playback summary",
		"url", vopts.URL,
		"playRange", s[visual.KeyPlayRange],
		"droppedFrames", s[visual.KeyDroppedFrames],
		"size", fmt.Sprintf("%vx%v", s[visual.KeyWidth], s[visual.KeyHeight]),
	)
	return len(written), nil
}

func writeFrame(v *visual.Visual, path string) error {
	img, err := v.Image()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", strings.TrimSuffix(filepath.Base(path), ".png"), err)
	}
	return f.Close()
}
