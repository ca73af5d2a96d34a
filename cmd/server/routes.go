package main

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/vecanim/internal/asset"
	"github.com/inamate/vecanim/internal/config"
	"github.com/inamate/vecanim/internal/export"
	"github.com/inamate/vecanim/internal/remote"
	"github.com/inamate/vecanim/internal/visual"
)

const maxBodySize = 1 << 20

func newRouter(cfg *config.Config, manager *visual.Manager, hub *remote.Hub, logger *slog.Logger) *mux.Router {
	assetHandler := asset.NewHandler(cfg.AssetDir, logger)
	exportHandler := export.NewHandler(manager, cfg.FfmpegPath, cfg.RasterWorkers, logger)
	visuals := &visualHandler{manager: manager, logger: logger}

	r := mux.NewRouter()

	// Global middleware
	r.Use(recovery(logger))
	r.Use(requestLogger(logger))
	r.Use(cors(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Animation documents
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Visuals
	r.HandleFunc("/visuals", visuals.List).Methods("GET")
	r.HandleFunc("/visuals", visuals.Create).Methods("POST")
	r.HandleFunc("/visuals/{id}", visuals.Snapshot).Methods("GET")
	r.HandleFunc("/visuals/{id}", visuals.Delete).Methods("DELETE")
	r.HandleFunc("/visuals/{id}/frame.png", visuals.Frame).Methods("GET")
	r.HandleFunc("/visuals/{id}/actions/{action}", visuals.Action).Methods("POST")
	r.HandleFunc("/visuals/{id}/attach", visuals.Attach).Methods("POST")
	r.HandleFunc("/visuals/{id}/detach", visuals.Detach).Methods("POST")

	// Export
	r.HandleFunc("/export/{id}", exportHandler.Export).Methods("POST")

	// WebSocket endpoint
	origins := cfg.Origins()
	r.HandleFunc("/ws/visual/{id}", func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, mux.Vars(r)["id"], origins)
	})

	return r
}

type visualHandler struct {
	manager *visual.Manager
	logger  *slog.Logger
}

type createResponse struct {
	ID       string          `json:"id"`
	Snapshot visual.Snapshot `json:"snapshot"`
	Error    string          `json:"error,omitempty"`
}

func (h *visualHandler) lookup(w http.ResponseWriter, r *http.Request) (*visual.Visual, bool) {
	v, ok := h.manager.Visual(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "visual not found")
	}
	return v, ok
}

func (h *visualHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"visuals": h.manager.IDs()})
}

// Create handles POST /visuals with the creation options as a JSON object.
// A synchronous load that fails still creates the broken visual; the
// failure is reported in the response.
func (h *visualHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	opts, err := visual.ParseOptions(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.manager.Create(opts)
	if v == nil {
		status := http.StatusInternalServerError
		if errors.Is(err, visual.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	resp := createResponse{ID: v.ID(), Snapshot: v.GetPropertySnapshot()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *visualHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.GetPropertySnapshot())
}

// Action handles POST /visuals/{id}/actions/{action}. The optional body is
// {"param": ...}: a frame number for jumpTo, a property map for
// updateProperty.
func (h *visualHandler) Action(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	action, err := visual.ParseAction(mux.Vars(r)["action"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if action == visual.ActionSetDynamicProperty {
		writeError(w, http.StatusBadRequest, "dynamic properties need a callback and cannot be set over HTTP")
		return
	}

	var body struct {
		Param any `json:"param"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := v.DoAction(action, body.Param); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, visual.ErrDestroyed) {
			status = http.StatusGone
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v.GetPropertySnapshot())
}

func (h *visualHandler) Frame(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	img, err := v.Image()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		h.logger.Warn("encode frame", "visual", v.ID(), "error", err)
	}
}

func (h *visualHandler) Attach(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := v.Attach(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *visualHandler) Detach(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	v.Detach()
	w.WriteHeader(http.StatusNoContent)
}

func (h *visualHandler) Delete(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	v.Destroy()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
