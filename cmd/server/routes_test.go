package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inamate/vecanim/internal/config"
	"github.com/inamate/vecanim/internal/remote"
	"github.com/inamate/vecanim/internal/texture"
	"github.com/inamate/vecanim/internal/visual"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T) (*httptest.Server, *visual.Manager) {
	t.Helper()
	cfg := &config.Config{
		AssetDir:       t.TempDir(),
		FfmpegPath:     "ffmpeg",
		AllowedOrigins: "localhost:5173",
		RasterWorkers:  1,
		TickRate:       60,
	}
	manager := visual.NewManager(visual.Config{
		Workers: 1,
		Loader:  visual.AssetLoader{Dir: cfg.AssetDir},
		Pool:    texture.NewPool(),
		Logger:  discard,
	})
	t.Cleanup(manager.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := remote.NewHub(manager, discard)
	go hub.Run(ctx)
	go runUITick(ctx, manager, hub, 120)

	srv := httptest.NewServer(newRouter(cfg, manager, hub, discard))
	t.Cleanup(srv.Close)
	return srv, manager
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestVisualLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, out := do(t, http.MethodPost, srv.URL+"/visuals", map[string]any{
		"url":                "sample://pulse",
		"synchronousLoading": true,
		"playRange":          "grow",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %v", resp.StatusCode, out)
	}
	id, _ := out["id"].(string)
	if id == "" {
		t.Fatalf("no id in %v", out)
	}
	base := srv.URL + "/visuals/" + id

	resp, out = do(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusOK || out[visual.KeyTotalFrameNumber] != float64(100) {
		t.Errorf("snapshot = %d %v", resp.StatusCode, out)
	}

	resp, out = do(t, http.MethodPost, base+"/actions/jumpTo", map[string]any{"param": 7})
	if resp.StatusCode != http.StatusOK || out[visual.KeyCurrentFrame] != float64(7) {
		t.Errorf("jumpTo = %d %v", resp.StatusCode, out)
	}
	resp, _ = do(t, http.MethodPost, base+"/actions/play", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("play status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, base+"/actions/rewind", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown action status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, base+"/actions/jumpTo", map[string]any{"param": "end"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad jumpTo status = %d", resp.StatusCode)
	}

	frame, err := http.Get(base + "/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(frame.Body)
	frame.Body.Close()
	if err != nil {
		t.Fatalf("frame.png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("frame bounds = %v", b)
	}

	resp, _ = do(t, http.MethodPost, base+"/detach", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("detach status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, base+"/attach", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("attach status = %d", resp.StatusCode)
	}

	_, out = do(t, http.MethodGet, srv.URL+"/visuals", nil)
	if list, _ := out["visuals"].([]any); len(list) != 1 || list[0] != id {
		t.Errorf("list = %v", out)
	}

	resp, _ = do(t, http.MethodDelete, base, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestCreateReportsLoadFailure(t *testing.T) {
	srv, manager := newTestServer(t)
	resp, out := do(t, http.MethodPost, srv.URL+"/visuals", map[string]any{
		"url":                "missing.json",
		"synchronousLoading": true,
	})
	if resp.StatusCode != http.StatusCreated || out["error"] == nil {
		t.Fatalf("create = %d %v", resp.StatusCode, out)
	}
	if len(manager.IDs()) != 1 {
		t.Error("broken visual not kept")
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/visuals", map[string]any{"url": "a.json", "autoplay": true})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown option status = %d", resp.StatusCode)
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}
