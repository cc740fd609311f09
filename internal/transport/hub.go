// Package transport carries sessions over websockets.
//
// Each connection gets a reader goroutine that turns client messages into
// engine events and a writer goroutine that drains a bounded send buffer.
// The engine loop never waits on a client: Broadcast encodes each tick
// once per codec and drops the frame for any connection whose buffer is
// full.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/session"
	"github.com/roach88/tether/internal/snapshot"
)

// Connection defaults.
const (
	DefaultSendBuffer     = 16
	DefaultWriteWait      = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxMessageSize = 4096
)

// Engine is the part of the engine the hub drives.
type Engine interface {
	Connect(ctx context.Context, connectionID, participantID string) error
	Disconnect(connectionID string) bool
	MoveCursor(connectionID string, p physics.Vec) bool
	Pick(connectionID string, p physics.Vec, isBind bool) bool
	Release(connectionID string) bool
	Spawn(connectionID string, p physics.Vec) bool
}

// Hub accepts websocket sessions and fans snapshots out to them.
//
// Thread-safety: ServeHTTP and Close may be called from any goroutine.
// Broadcast is called from the engine loop.
type Hub struct {
	engine   Engine
	ids      session.IDGenerator
	logger   *slog.Logger
	upgrader websocket.Upgrader

	sendBuffer     int
	writeWait      time.Duration
	pongWait       time.Duration
	maxMessageSize int64

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	// active counts registered connections whose handlers have not yet
	// returned.
	active sync.WaitGroup

	dropped atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger. Default: slog.Default().
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithIDGenerator sets how connection ids are minted. Default: UUIDv7.
func WithIDGenerator(g session.IDGenerator) HubOption {
	return func(h *Hub) {
		if g != nil {
			h.ids = g
		}
	}
}

// WithSendBuffer sets how many frames may wait per connection.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithTimeouts sets the write deadline and how long a connection may stay
// silent before it is dropped. Pings go out at nine tenths of pongWait.
func WithTimeouts(writeWait, pongWait time.Duration) HubOption {
	return func(h *Hub) {
		if writeWait > 0 {
			h.writeWait = writeWait
		}
		if pongWait > 0 {
			h.pongWait = pongWait
		}
	}
}

// WithCheckOrigin sets the upgrader's origin check. Default: accept all.
func WithCheckOrigin(f func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = f
	}
}

// NewHub creates a hub that feeds eng.
func NewHub(eng Engine, opts ...HubOption) *Hub {
	h := &Hub{
		engine:         eng,
		ids:            session.UUIDv7Generator{},
		logger:         slog.Default(),
		sendBuffer:     DefaultSendBuffer,
		writeWait:      DefaultWriteWait,
		pongWait:       DefaultPongWait,
		maxMessageSize: DefaultMaxMessageSize,
		clients:        make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and runs the session until the client
// goes away. The participant id comes from the id query parameter; without
// it the request is refused with 401 and no session is created.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	participant := query.Get("id")
	if strings.TrimSpace(participant) == "" {
		h.logger.Info("connection refused", "remote", r.RemoteAddr, "reason", "missing participant id")
		http.Error(w, "authentication error", http.StatusUnauthorized)
		return
	}

	codec, err := CodecByName(query.Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:    h.ids.Generate(),
		conn:  conn,
		codec: codec,
		send:  make(chan []byte, h.sendBuffer),
		done:  make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.writeWait))
		_ = conn.Close()
		return
	}
	defer h.unregister(c)

	if err := h.engine.Connect(r.Context(), c.id, participant); err != nil {
		h.logger.Warn("session refused", "connection", c.id, "error", err)
		reason := "session refused"
		if errors.Is(err, session.ErrAuthentication) {
			reason = "authentication error"
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(h.writeWait))
		_ = conn.Close()
		return
	}
	defer h.engine.Disconnect(c.id)

	h.logger.Debug("connection open", "connection", c.id, "codec", codec.Name(), "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast sends snap to the given connections. Each codec in use
// encodes the frame once.
func (h *Hub) Broadcast(snap snapshot.Snapshot, recipients []string) {
	msg := Outbound{Type: TypeSync, Data: snap}
	frames := make(map[string][]byte, len(codecs))

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range recipients {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		name := c.codec.Name()
		frame, ok := frames[name]
		if !ok {
			var err error
			frame, err = c.codec.Marshal(msg)
			if err != nil {
				h.logger.Error("encode snapshot failed", "codec", name, "error", err)
				continue
			}
			frames[name] = frame
		}

		select {
		case c.send <- frame:
		default:
			if h.dropped.Add(1)%100 == 1 {
				h.logger.Warn("send buffer full, dropping frame", "connection", id, "dropped_total", h.dropped.Load())
			}
		}
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were dropped on full buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops every connection and refuses new ones. It returns once every
// session handler has finished, so each session's disconnect is already
// queued on the engine.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
	h.active.Wait()
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.active.Add(1)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.stop()
	_ = c.conn.Close()
	h.active.Done()
}

// readPump decodes client messages into engine calls until the connection
// fails or goes quiet for longer than pongWait.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(h.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug("connection read failed", "connection", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))

		var msg Inbound
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("malformed message", "connection", c.id, "error", err)
			continue
		}
		h.dispatch(c.id, msg)
	}
}

func (h *Hub) dispatch(id string, msg Inbound) {
	typ := canonicalType(msg.Type)
	if typ != TypeRelease && !msg.Data.Point().Finite() {
		// msgpack can carry NaN and Inf; JSON snapshots cannot.
		h.logger.Debug("dropping message with non-finite point", "connection", id, "type", msg.Type)
		return
	}

	switch typ {
	case TypeCursorMove:
		h.engine.MoveCursor(id, msg.Data.Point())
	case TypePick:
		h.engine.Pick(id, msg.Data.Point(), msg.Data.IsBind)
	case TypeRelease:
		h.engine.Release(id)
	case TypeSpawnAt:
		h.engine.Spawn(id, msg.Data.Point())
	default:
		h.logger.Debug("unknown message type", "connection", id, "type", msg.Type)
	}
}

// writePump sends queued frames and keepalive pings until the client
// stops.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), frame); err != nil {
				h.logger.Debug("connection write failed", "connection", c.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeWait))
			return
		}
	}
}

// client is one websocket connection.
type client struct {
	id    string
	conn  *websocket.Conn
	codec Codec

	// send is never closed: Broadcast may still hold a reference after
	// the client stops. done tells the write pump to quit.
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}
