package asset

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/inamate/vecanim/internal/engine"
	"github.com/inamate/vecanim/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadResponse is returned from the upload endpoint. Name is the value to
// pass as a visual's url.
type UploadResponse struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Frames  int               `json:"frames"`
	FPS     float64           `json:"fps"`
	Markers map[string][2]int `json:"markers"`
	Source  string            `json:"source,omitempty"`
}

// Handler serves animation upload and retrieval endpoints.
type Handler struct {
	dir    string // directory to store animation documents
	logger *slog.Logger
}

// NewHandler creates a new asset handler that stores files in dir.
func NewHandler(dir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, logger: logger}
}

// Upload handles POST /assets/upload (multipart form with "file" field). The
// document is parsed before it is stored, so every stored asset loads.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}
	anim, err := engine.Load(data)
	if err != nil {
		http.Error(w, "invalid animation: "+err.Error(), http.StatusBadRequest)
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + ".json"
	if err := os.WriteFile(filepath.Join(h.dir, filename), data, 0o644); err != nil {
		h.logger.Error("write asset file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	width, height := anim.NaturalSize()
	resp := UploadResponse{
		ID:      assetID,
		Name:    filename,
		URL:     fmt.Sprintf("/assets/%s", filename),
		Width:   width,
		Height:  height,
		Frames:  anim.TotalFrames(),
		FPS:     anim.FrameRate(),
		Markers: anim.Markers(),
		Source:  header.Filename,
	}
	h.logger.Info("animation uploaded", "id", assetID, "frames", resp.Frames, "source", header.Filename)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Serve returns an http.Handler that serves stored documents with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Delete removes an animation document from disk.
func (h *Handler) Delete(assetID string) error {
	path := filepath.Join(h.dir, assetID+".json")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("asset not found: %s: %w", assetID, err)
	}
	return nil
}
