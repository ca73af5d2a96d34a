package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Formats lists the supported output formats.
var Formats = []string{"mp4", "gif", "webm"}

// ContentType returns the MIME type of format, "" if unsupported.
func ContentType(format string) string {
	switch format {
	case "mp4":
		return "video/mp4"
	case "gif":
		return "image/gif"
	case "webm":
		return "video/webm"
	}
	return ""
}

// Encoder turns a directory of numbered frames into a video with ffmpeg.
type Encoder struct {
	FfmpegPath string
}

// Encode encodes the frames in dir and returns the path of the output file,
// which is written into dir as well.
func (e Encoder) Encode(ctx context.Context, dir, format string, fps int) (string, error) {
	input := filepath.Join(dir, framePattern)
	rate := strconv.Itoa(fps)

	switch format {
	case "mp4":
		out := filepath.Join(dir, "output.mp4")
		return out, e.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-crf", "18",
			"-preset", "fast",
			"-movflags", "+faststart",
			out,
		)

	case "gif":
		out := filepath.Join(dir, "output.gif")
		// Two-pass GIF: generate palette then apply
		palette := filepath.Join(dir, "palette.png")
		if err := e.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-vf", "palettegen=stats_mode=diff",
			palette,
		); err != nil {
			return "", err
		}
		return out, e.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-i", palette,
			"-lavfi", "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
			out,
		)

	case "webm":
		out := filepath.Join(dir, "output.webm")
		return out, e.run(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-pix_fmt", "yuva420p",
			out,
		)
	}
	return "", fmt.Errorf("invalid format %q: must be mp4, gif, or webm", format)
}

func (e Encoder) run(ctx context.Context, args ...string) error {
	// -y overwrites output without prompting
	fullArgs := append([]string{"-y"}, args...)
	cmd := exec.CommandContext(ctx, e.FfmpegPath, fullArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, stderr.String())
	}
	return nil
}
