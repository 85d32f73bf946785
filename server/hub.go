// Package server exposes a running round over websocket. Clients send
// steering intents as JSON text frames and receive one world frame per tick,
// msgpack-encoded by default or JSON with ?format=json. Round events are
// relayed as JSON text frames.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/session"
)

const (
	DefaultTickInterval = time.Second / 60
	DefaultPathStride   = 2
	DefaultWriteWait    = time.Second
	sendBuffer          = 8
	maxMessageSize      = 4096
)

type Config struct {
	Session      session.Options
	TickInterval time.Duration
	// PathStride decimates trails in outgoing frames.
	PathStride int
	WriteWait  time.Duration
	Logger     *slog.Logger
	// OnTick runs after every step, with the hub locked.
	OnTick func(r *session.Round)
}

type outbound struct {
	kind int
	data []byte
}

type subscriber struct {
	id     string
	conn   *websocket.Conn
	format string
	wait   time.Duration
	mu     sync.Mutex

	sendMu sync.Mutex
	send   chan outbound
	closed bool
}

// offer queues msg without blocking. It reports false when the queue is
// full or closed.
func (s *subscriber) offer(msg outbound) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// WriteMessage sends a websocket message guarded by the subscriber's mutex and write deadline.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	if s == nil || s.conn == nil {
		return errors.New("subscriber closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.wait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// Hub owns one round and the websocket clients watching it. The round is
// stepped on the Run goroutine; every other access goes through mu.
type Hub struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	round   *session.Round
	intent  game.Intent
	pending []EventMessage
	subs    map[string]*subscriber
}

// NewHub starts the first round. The hub relays the round's events to its
// clients in addition to any listeners in cfg.Session.
func NewHub(cfg Config) (*Hub, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.PathStride < 1 {
		cfg.PathStride = DefaultPathStride
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Hub{
		cfg:      cfg,
		log:      cfg.Logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		subs:     make(map[string]*subscriber),
	}

	opts := cfg.Session
	opts.Listeners = append(append([]session.Listener(nil), opts.Listeners...), session.ListenerFunc(h.relay))

	r, err := session.New(opts)
	if err != nil {
		return nil, err
	}
	h.round = r
	return h, nil
}

func (h *Hub) relay(r *session.Round, ev game.Event) {
	if ev.Kind == game.BotSpawned {
		return
	}
	h.pending = append(h.pending, newEventMessage(r.ID, ev))
}

// Run ticks the round until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()
	h.log.Info("hub running", "tick", h.cfg.TickInterval, "round", h.RoundID())
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
			h.Tick()
		}
	}
}

// Tick advances the round once (unless it is over and waiting for a
// restart) and broadcasts the resulting frame and events.
func (h *Hub) Tick() {
	h.mu.Lock()
	if !h.round.Over() {
		if _, err := h.round.Step(h.intent); err != nil {
			h.log.Warn("step failed", "round", h.round.ID, "error", err)
		} else if h.cfg.OnTick != nil {
			h.cfg.OnTick(h.round)
		}
	}
	roundID := h.round.ID
	snap := h.round.World.Snapshot(h.cfg.PathStride)
	events := h.pending
	h.pending = nil
	subs := h.subscribersLocked()
	h.mu.Unlock()

	for _, ev := range events {
		if ev.Kind == game.PlayerDied.String() {
			h.log.Info("player died", "round", roundID, "score", ev.Score, "killer", ev.Killer)
		}
	}
	h.broadcast(subs, roundID, snap, events)
}

// Restart replaces an ended round with a new one.
func (h *Hub) Restart() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.round.Over() {
		return nil
	}
	h.intent = game.Intent{}
	if err := h.round.Restart(); err != nil {
		return err
	}
	h.log.Info("round restarted", "round", h.round.ID, "seed", h.round.Seed())
	return nil
}

// RoundID returns the id of the current round.
func (h *Hub) RoundID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.round.ID
}

// Summary reports the current round.
func (h *Hub) Summary() session.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.round.Summary()
}

// Subscribers counts connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribersLocked() []*subscriber {
	out := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s)
	}
	return out
}

func (h *Hub) broadcast(subs []*subscriber, roundID string, snap game.Snapshot, events []EventMessage) {
	var eventFrames [][]byte
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("encode event", "error", err)
			continue
		}
		eventFrames = append(eventFrames, data)
	}

	encoded := map[string]outbound{}
	for _, s := range subs {
		frame, ok := encoded[s.format]
		if !ok {
			kind, data, err := encodeState(s.format, roundID, snap)
			if err != nil {
				h.log.Error("encode state", "format", s.format, "error", err)
				return
			}
			frame = outbound{kind: kind, data: data}
			encoded[s.format] = frame
		}
		for _, data := range eventFrames {
			h.enqueue(s, outbound{kind: websocket.TextMessage, data: data})
		}
		h.enqueue(s, frame)
	}
}

// enqueue drops the frame when the client is too slow to keep up or gone.
func (h *Hub) enqueue(s *subscriber, msg outbound) {
	if !s.offer(msg) {
		h.log.Debug("dropping frame", "subscriber", s.id)
	}
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := FormatMsgpack
	if r.URL.Query().Get("format") == FormatJSON {
		format = FormatJSON
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s := &subscriber{
		id:     uuid.NewString(),
		conn:   conn,
		format: format,
		send:   make(chan outbound, sendBuffer),
		wait:   h.cfg.WriteWait,
	}

	h.mu.Lock()
	h.subs[s.id] = s
	roundID := h.round.ID
	snap := h.round.World.Snapshot(h.cfg.PathStride)
	h.mu.Unlock()
	h.log.Info("client connected", "subscriber", s.id, "format", format, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(s, done)
	if kind, data, err := encodeState(format, roundID, snap); err == nil {
		h.enqueue(s, outbound{kind: kind, data: data})
	}

	h.readLoop(s)

	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()
	s.closeSend()
	<-done
	_ = conn.Close()
	h.log.Info("client disconnected", "subscriber", s.id)
}

func (h *Hub) readLoop(s *subscriber) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read failed", "subscriber", s.id, "error", err)
			}
			return
		}
		msg, err := ParseClientMessage(data)
		if err != nil {
			h.log.Debug("bad client message", "subscriber", s.id, "error", err)
			continue
		}
		if in, ok := msg.Intent(); ok {
			h.mu.Lock()
			h.intent = in
			h.mu.Unlock()
			continue
		}
		if msg.Type == MsgRestart {
			if err := h.Restart(); err != nil {
				h.log.Error("restart failed", "error", err)
			}
		}
	}
}

func (h *Hub) writeLoop(s *subscriber, done chan<- struct{}) {
	defer close(done)
	for msg := range s.send {
		if err := s.WriteMessage(msg.kind, msg.data); err != nil {
			h.log.Debug("write failed", "subscriber", s.id, "error", err)
			_ = s.conn.Close()
			for range s.send {
			}
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	subs := h.subscribersLocked()
	h.mu.Unlock()
	for _, s := range subs {
		_ = s.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = s.conn.Close()
	}
}

// StatusResponse is served at /status.
type StatusResponse struct {
	RoundID     string `json:"round_id"`
	Tick        int64  `json:"tick"`
	Score       int    `json:"score"`
	Over        bool   `json:"over"`
	Killer      string `json:"killer,omitempty"`
	Level       int    `json:"level"`
	Subscribers int    `json:"subscribers"`
}

// Handler routes /ws to the hub and /status to a JSON round summary.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		sum := h.round.Summary()
		resp := StatusResponse{
			RoundID:     sum.RoundID,
			Tick:        sum.Ticks,
			Score:       sum.Score,
			Over:        h.round.Over(),
			Killer:      sum.Killer,
			Level:       sum.Level,
			Subscribers: len(h.subs),
		}
		h.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			h.log.Warn("write status", "error", err)
		}
	})
	return mux
}
