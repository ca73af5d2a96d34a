package remote

import (
	"encoding/json"

	"github.com/inamate/vecanim/internal/rasterize"
)

type Message struct {
	Type     string          `json:"type"`
	VisualID string          `json:"visualId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeSignal   = "signal"
	TypeError    = "error"

	// Viewers
	TypeViewerJoin  = "viewer.join"
	TypeViewerLeave = "viewer.leave"

	// Control
	TypeAction    = "action"
	TypeActionAck = "action.ack"
)

type WelcomePayload struct {
	ClientID string         `json:"clientId"`
	Viewers  int            `json:"viewers"`
	Snapshot map[string]any `json:"snapshot"`
}

type ViewerPayload struct {
	ClientID string `json:"clientId"`
	Viewers  int    `json:"viewers"`
}

// SignalPayload mirrors a rasterize.Signal on the wire.
type SignalPayload struct {
	Kind         string `json:"kind"`
	Frame        int    `json:"frame"`
	LoopComplete bool   `json:"loopComplete,omitempty"`
	Error        string `json:"error,omitempty"`
}

func signalPayload(s rasterize.Signal) SignalPayload {
	p := SignalPayload{Kind: s.Kind.String(), Frame: s.Frame, LoopComplete: s.LoopComplete}
	if s.Err != nil {
		p.Error = s.Err.Error()
	}
	return p
}

// ActionPayload asks for one control action. Param is the jumpTo frame or
// the updateProperty map.
type ActionPayload struct {
	Action string `json:"action"`
	Param  any    `json:"param,omitempty"`
}

type ActionAckPayload struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(typ, visualID string, payload any) *Message {
	data, _ := json.Marshal(payload)
	return &Message{Type: typ, VisualID: visualID, Payload: data}
}
