package remote

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Serve upgrades the request to a websocket and streams visualID to it
// until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, visualID string, originPatterns []string) {
	if _, ok := h.visuals.Visual(visualID); !ok {
		http.Error(w, "visual not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		h.logger.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h, conn, visualID, uuid.New().String())
	h.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
