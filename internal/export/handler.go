// Package export renders a visual's play range offline and encodes it with
// ffmpeg.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/playback"
	"github.com/inamate/vecanim/internal/typeid"
	"github.com/inamate/vecanim/internal/visual"
)

// Visuals looks up live visuals. *visual.Manager implements it.
type Visuals interface {
	Visual(id string) (*visual.Visual, bool)
}

type Handler struct {
	visuals Visuals
	encoder Encoder
	workers int
	logger  *slog.Logger
}

func NewHandler(visuals Visuals, ffmpegPath string, workers int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		visuals: visuals,
		encoder: Encoder{FfmpegPath: ffmpegPath},
		workers: max(workers, 1),
		logger:  logger,
	}
}

// Export handles POST /export/{id}. It renders the visual's current play
// range at its current size, with its dynamic properties applied, and
// streams the encoded file back. Form values: format (mp4, gif, webm), fps
// and name.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, ok := h.visuals.Visual(id)
	if !ok {
		http.Error(w, "visual not found", http.StatusNotFound)
		return
	}

	format := r.FormValue("format")
	if !slices.Contains(Formats, format) {
		http.Error(w, "invalid format: must be mp4, gif, or webm", http.StatusBadRequest)
		return
	}

	anim := v.Animation()
	if anim == nil {
		http.Error(w, "animation not ready", http.StatusConflict)
		return
	}

	fps, err := strconv.Atoi(r.FormValue("fps"))
	if err != nil || fps <= 0 || fps > 120 {
		fps = max(int(math.Round(anim.FrameRate())), 1)
	}
	name := sanitize(r.FormValue("name"), id)

	job := jobFor(v, anim)
	exportID := typeid.NewExportID()
	logger := h.logger.With("export", exportID, "visual", id)

	tempDir, err := os.MkdirTemp("", "vecanim-export-*")
	if err != nil {
		logger.Error("create temp dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	logger.Info("export started", "format", format, "range", job.Range, "fps", fps)

	frames, err := RenderFrames(r.Context(), job, tempDir, h.workers)
	if err != nil {
		logger.Error("render frames", "error", err)
		http.Error(w, fmt.Sprintf("rendering failed: %v", err), http.StatusInternalServerError)
		return
	}

	outputFile, err := h.encoder.Encode(r.Context(), tempDir, format, fps)
	if err != nil {
		logger.Error("ffmpeg failed", "error", err)
		http.Error(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
		return
	}

	outFile, err := os.Open(outputFile)
	if err != nil {
		logger.Error("open output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer outFile.Close()

	stat, err := outFile.Stat()
	if err != nil {
		logger.Error("stat output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	io.Copy(w, outFile)

	logger.Info("export complete", "format", format, "frames", frames, "size", stat.Size())
}

// jobFor captures the committed play range, size and bindings of v.
func jobFor(v *visual.Visual, anim *engine.Animation) Job {
	s := v.GetPropertySnapshot()
	job := Job{Anim: anim, Range: playback.Range{Start: 0, End: max(anim.TotalFrames()-1, 0)}}
	if r, ok := s[visual.KeyPlayRange].([2]int); ok {
		job.Range = playback.Range{Start: r[0], End: r[1]}
	}
	job.Width, _ = s[visual.KeyWidth].(int)
	job.Height, _ = s[visual.KeyHeight].(int)
	if task := v.Task(); task != nil && task.Bindings().Len() > 0 {
		bindings := task.Bindings()
		job.Overrides = func(frame int) engine.Overrides {
			dyn, _ := bindings.Evaluate(frame)
			return dyn
		}
	}
	return job
}

// sanitize keeps name safe for a Content-Disposition filename.
func sanitize(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
