// Package remote streams visual signals and snapshots to websocket viewers
// and accepts control actions from them.
package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/inamate/vecanim/internal/rasterize"
	"github.com/inamate/vecanim/internal/visual"
)

// Visuals looks up live visuals. *visual.Manager implements it.
type Visuals interface {
	Visual(id string) (*visual.Visual, bool)
}

type Room struct {
	visualID string
	clients  map[string]*Client // clientID -> client
	seq      int64
}

func NewRoom(visualID string) *Room {
	return &Room{
		visualID: visualID,
		clients:  make(map[string]*Client),
	}
}

type Hub struct {
	visuals Visuals
	logger  *slog.Logger

	mu         sync.RWMutex
	rooms      map[string]*Room // visualID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(visuals Visuals, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		visuals:    visuals,
		logger:     logger,
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.mu.Lock()
			for id, room := range h.rooms {
				for _, c := range room.clients {
					c.close()
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Viewers returns the number of clients watching visualID.
func (h *Hub) Viewers(visualID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[visualID]; ok {
		return len(room.clients)
	}
	return 0
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.VisualID]
	if !ok {
		room = NewRoom(client.VisualID)
		h.rooms[client.VisualID] = room
	}
	room.clients[client.ClientID] = client
	viewers := len(room.clients)
	h.mu.Unlock()

	welcome := WelcomePayload{ClientID: client.ClientID, Viewers: viewers}
	if v, ok := h.visuals.Visual(client.VisualID); ok {
		welcome.Snapshot = v.GetPropertySnapshot()
	}
	client.Send(newMessage(TypeWelcome, client.VisualID, welcome))

	h.broadcastToRoom(client.VisualID, newMessage(TypeViewerJoin, client.VisualID, ViewerPayload{
		ClientID: client.ClientID,
		Viewers:  viewers,
	}), client.ClientID)

	h.logger.Info("viewer joined", "client", client.ClientID, "visual", client.VisualID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.VisualID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	client.close()
	viewers := len(room.clients)
	if viewers == 0 {
		delete(h.rooms, client.VisualID)
	}
	h.mu.Unlock()

	h.broadcastToRoom(client.VisualID, newMessage(TypeViewerLeave, client.VisualID, ViewerPayload{
		ClientID: client.ClientID,
		Viewers:  viewers,
	}), "")

	h.logger.Info("viewer left", "client", client.ClientID, "visual", client.VisualID)
}

// Publish forwards signals delivered by the UI tick to the viewers of their
// visuals. Lifecycle signals are followed by a fresh snapshot.
func (h *Hub) Publish(sigs []rasterize.Signal) {
	for _, s := range sigs {
		if h.Viewers(s.Owner) == 0 {
			continue
		}
		h.broadcastToRoom(s.Owner, newMessage(TypeSignal, s.Owner, signalPayload(s)), "")
		if s.Kind != rasterize.FrameReady {
			h.broadcastSnapshot(s.Owner)
		}
	}
}

func (h *Hub) broadcastSnapshot(visualID string) {
	v, ok := h.visuals.Visual(visualID)
	if !ok {
		return
	}
	h.broadcastToRoom(visualID, newMessage(TypeSnapshot, visualID, v.GetPropertySnapshot()), "")
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypeAction:
		h.handleAction(sender, msg)
	case TypeSnapshot:
		if v, ok := h.visuals.Visual(sender.VisualID); ok {
			sender.Send(newMessage(TypeSnapshot, sender.VisualID, v.GetPropertySnapshot()))
		}
	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
		sender.Send(newMessage(TypeError, sender.VisualID, ErrorPayload{Message: "unknown message type " + msg.Type}))
	}
}

func (h *Hub) handleAction(sender *Client, msg *Message) {
	var p ActionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.logger.Warn("invalid action payload", "error", err)
		sender.Send(newMessage(TypeError, sender.VisualID, ErrorPayload{Message: "invalid action payload"}))
		return
	}

	ack := ActionAckPayload{Action: p.Action}
	err := h.doAction(sender.VisualID, p)
	if err != nil {
		ack.Error = err.Error()
	} else {
		ack.OK = true
	}
	sender.Send(newMessage(TypeActionAck, sender.VisualID, ack))
	if err == nil {
		h.broadcastSnapshot(sender.VisualID)
	}
}

func (h *Hub) doAction(visualID string, p ActionPayload) error {
	v, ok := h.visuals.Visual(visualID)
	if !ok {
		return visual.ErrDestroyed
	}
	action, err := visual.ParseAction(p.Action)
	if err != nil {
		return err
	}
	return v.DoAction(action, p.Param)
}

func (h *Hub) broadcastToRoom(visualID string, msg *Message, excludeClientID string) {
	h.mu.Lock()
	room, ok := h.rooms[visualID]
	if !ok {
		h.mu.Unlock()
		return
	}
	room.seq++
	msg.Seq = room.seq

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
