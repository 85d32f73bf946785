package server

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/session"
)

// Client message types.
const (
	MsgIntent  = "intent"
	MsgHeading = "heading"
	MsgRestart = "restart"
)

// Frame formats selected with ?format=.
const (
	FormatMsgpack = "msgpack"
	FormatJSON    = "json"
)

// ClientMessage is any text frame sent by a client.
//
//	{"type":"intent","pointer_x":..,"pointer_y":..,"center_x":..,"center_y":..,"boost":true}
//	{"type":"heading","heading":1.57,"boost":false}
//	{"type":"restart"}
type ClientMessage struct {
	Type     string  `json:"type"`
	PointerX float64 `json:"pointer_x"`
	PointerY float64 `json:"pointer_y"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Heading  float64 `json:"heading"`
	Boost    bool    `json:"boost"`
}

func ParseClientMessage(data []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode client message: %w", err)
	}
	switch m.Type {
	case MsgIntent, MsgHeading, MsgRestart:
		return m, nil
	}
	return m, fmt.Errorf("unknown message type %q", m.Type)
}

// Intent converts a steering message. ok is false for other message types.
func (m ClientMessage) Intent() (in game.Intent, ok bool) {
	switch m.Type {
	case MsgIntent:
		return game.PointerIntent(m.PointerX, m.PointerY, m.CenterX, m.CenterY, m.Boost), true
	case MsgHeading:
		in = game.HoldIntent(m.Heading)
		in.Boost = m.Boost
		return in, true
	}
	return game.Intent{}, false
}

// StateMessage is the JSON form of a world frame.
type StateMessage struct {
	Type    string `json:"type"`
	RoundID string `json:"round_id"`
	game.Snapshot
}

// EventMessage relays a round event to clients as JSON.
type EventMessage struct {
	Type    string `json:"type"`
	RoundID string `json:"round_id"`
	Kind    string `json:"kind"`
	Tick    int64  `json:"tick"`
	Name    string `json:"name,omitempty"`
	Score   int    `json:"score"`
	Killer  string `json:"killer,omitempty"`
	XP      int    `json:"xp,omitempty"`
	Level   int    `json:"level,omitempty"`
}

func newEventMessage(roundID string, ev game.Event) EventMessage {
	msg := EventMessage{
		Type:    "event",
		RoundID: roundID,
		Kind:    ev.Kind.String(),
		Tick:    ev.Tick,
		Name:    ev.Name,
		Score:   ev.Score,
		Killer:  ev.Killer,
	}
	if ev.Kind == game.RoundEnded {
		msg.XP = session.XPReward(ev.Score)
		msg.Level = session.Level(msg.XP)
	}
	return msg
}

// encodeState renders a snapshot for the given format and returns the
// websocket message type to send it with.
func encodeState(format, roundID string, snap game.Snapshot) (int, []byte, error) {
	if format == FormatJSON {
		data, err := json.Marshal(StateMessage{Type: "state", RoundID: roundID, Snapshot: snap})
		return websocket.TextMessage, data, err
	}
	data, err := msgpack.Marshal(&snap)
	return websocket.BinaryMessage, data, err
}
