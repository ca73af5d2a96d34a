package asset

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/inamate/vecanim/internal/document"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStoresValidDocument(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir, discard)
	data, err := json.Marshal(document.NewSampleDocument())
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "shapes.json", data))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Frames != 48 || resp.Width != 640 || resp.Height != 360 || resp.Source != "shapes.json" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Markers["outro"] != [2]int{24, 47} {
		t.Errorf("markers = %v", resp.Markers)
	}
	if _, err := os.Stat(filepath.Join(dir, resp.Name)); err != nil {
		t.Errorf("stored file: %v", err)
	}

	rec = httptest.NewRecorder()
	h.Serve().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), data) {
		t.Errorf("serve status = %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("missing Cache-Control")
	}

	if err := h.Delete(resp.ID); err != nil {
		t.Fatal(err)
	}
	if err := h.Delete(resp.ID); err == nil {
		t.Error("second delete succeeded")
	}
}

func TestUploadRejectsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir, discard)
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "bad.json", []byte(`{"project": {}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("invalid document stored: %v", entries)
	}
}
