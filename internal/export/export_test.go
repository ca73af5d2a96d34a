package export

import (
	"context"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/inamate/vecanim/internal/document"
	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/playback"
	"github.com/inamate/vecanim/internal/texture"
	"github.com/inamate/vecanim/internal/visual"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func pulse(t *testing.T) *engine.Animation {
	t.Helper()
	doc, _ := document.Sample("pulse")
	anim, err := engine.New(doc)
	if err != nil {
		t.Fatal(err)
	}
	return anim
}

func TestRenderFrames(t *testing.T) {
	dir := t.TempDir()
	job := Job{
		Anim:   pulse(t),
		Range:  playback.Range{Start: 55, End: 50},
		Width:  40,
		Height: 30,
		Overrides: func(int) engine.Overrides { return engine.NewOverrides() },
	}
	n, err := RenderFrames(context.Background(), job, dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("frames = %d, want 6", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 6 {
		t.Fatalf("files = %d, want 6", len(entries))
	}
	f, err := os.Open(filepath.Join(dir, "frame_0005.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("bounds = %v", b)
	}
}

func TestRenderFramesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := Job{Anim: pulse(t), Range: playback.Range{Start: 0, End: 99}}
	if _, err := RenderFrames(ctx, job, t.TempDir(), 2); err == nil {
		t.Error("expected error for a canceled context")
	}
}

func TestEncodeErrors(t *testing.T) {
	e := Encoder{FfmpegPath: filepath.Join(t.TempDir(), "no-ffmpeg")}
	if _, err := e.Encode(context.Background(), t.TempDir(), "avi", 24); err == nil {
		t.Error("expected error for an unknown format")
	}
	if _, err := e.Encode(context.Background(), t.TempDir(), "gif", 24); err == nil {
		t.Error("expected error for a missing ffmpeg")
	}
	if ContentType("webm") != "video/webm" || ContentType("avi") != "" {
		t.Error("ContentType mismatch")
	}
}

func TestExportHandlerRejects(t *testing.T) {
	m := visual.NewManager(visual.Config{Workers: 1, Pool: texture.NewPool(), Logger: discard})
	t.Cleanup(m.Close)
	v, err := m.Create(visual.Options{URL: "sample://pulse", SynchronousLoading: true})
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(m, filepath.Join(t.TempDir(), "no-ffmpeg"), 2, discard)

	tests := []struct {
		name string
		id   string
		form string
		want int
	}{
		{"unknown visual", "vis_missing", "format=gif", http.StatusNotFound},
		{"bad format", v.ID(), "format=avi", http.StatusBadRequest},
		{"encoder missing", v.ID(), "format=gif&fps=12", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/export/"+tt.id, strings.NewReader(tt.form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req = mux.SetURLVars(req, map[string]string{"id": tt.id})
		rec := httptest.NewRecorder()
		h.Export(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("my clip/1", "x"); got != "my-clip-1" {
		t.Errorf("sanitize = %q", got)
	}
	if got := sanitize("", "vis_1"); got != "vis_1" {
		t.Errorf("fallback = %q", got)
	}
}
