package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/engine"
	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/session"
	"github.com/roach88/tether/internal/snapshot"
)

// fakeEngine records calls as strings on a channel.
type fakeEngine struct {
	calls      chan string
	connectErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{calls: make(chan string, 64)}
}

func (f *fakeEngine) Connect(_ context.Context, id, participant string) error {
	f.calls <- fmt.Sprintf("connect %s %s", id, participant)
	return f.connectErr
}

func (f *fakeEngine) Disconnect(id string) bool {
	f.calls <- "disconnect " + id
	return true
}

func (f *fakeEngine) MoveCursor(id string, p physics.Vec) bool {
	f.calls <- fmt.Sprintf("cursorMove %s %g,%g", id, p.X, p.Y)
	return true
}

func (f *fakeEngine) Pick(id string, p physics.Vec, isBind bool) bool {
	f.calls <- fmt.Sprintf("pick %s %g,%g bind=%t", id, p.X, p.Y, isBind)
	return true
}

func (f *fakeEngine) Release(id string) bool {
	f.calls <- "release " + id
	return true
}

func (f *fakeEngine) Spawn(id string, p physics.Vec) bool {
	f.calls <- fmt.Sprintf("spawnAt %s %g,%g", id, p.X, p.Y)
	return true
}

func (f *fakeEngine) next(t *testing.T) string {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for engine call")
		return ""
	}
}

type fakeStats struct{}

func (fakeStats) Stats() engine.Stats {
	return engine.Stats{Tick: 7, Sessions: 1, Bodies: 12, Constraints: 3}
}

func startServer(t *testing.T, eng Engine, opts ...HubOption) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(eng, opts...)
	srv := httptest.NewServer(NewMux(hub, fakeStats{}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + PathSession + query
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sampleSnapshot() snapshot.Snapshot {
	r := 30.0
	return snapshot.Snapshot{
		Bodies: []snapshot.BodyView{{
			ID:       1,
			Label:    "Circle Body",
			Position: physics.Vec{X: 345, Y: 129},
			Radius:   &r,
			Render:   snapshot.Render{Visible: true},
		}},
		Constraints: []snapshot.ConstraintView{},
	}
}

func TestServeHTTP_MissingParticipantRefused(t *testing.T) {
	eng := newFakeEngine()
	_, srv := startServer(t, eng)

	for _, query := range []string{"", "?id=", "?id=%20%20"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake, query)
		require.NotNil(t, resp)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "authentication error\n", string(body))
	}
	assert.Empty(t, eng.calls, "no session was created")
}

func TestServeHTTP_UnknownCodec(t *testing.T) {
	_, srv := startServer(t, newFakeEngine())

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?id=alice&codec=xml"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeHTTP_InputsReachEngine(t *testing.T) {
	eng := newFakeEngine()
	_, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1")))

	conn := dial(t, srv, "?id=alice")
	assert.Equal(t, "connect conn-1 alice", eng.next(t))

	messages := []string{
		`{"type":"cursorMove","data":{"x":10,"y":20}}`,
		`{"type":"pick","data":{"x":1,"y":2}}`,
		`{"type":"mouseClicked","data":{"x":3,"y":4,"isBind":true}}`,
		`{"type":"release","data":{}}`,
		`{"type":"mouseDoubleClicked","data":{"x":5,"y":6}}`,
		`not json`,
		`{"type":"teleport","data":{"x":0,"y":0}}`,
		`{"type":"mouseMoved","data":{"x":7,"y":8}}`,
	}
	for _, m := range messages {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
	}

	want := []string{
		"cursorMove conn-1 10,20",
		"pick conn-1 1,2 bind=false",
		"pick conn-1 3,4 bind=true",
		"release conn-1",
		"spawnAt conn-1 5,6",
		"cursorMove conn-1 7,8",
	}
	for _, w := range want {
		assert.Equal(t, w, eng.next(t))
	}
}

func TestServeHTTP_NonFinitePointsDropped(t *testing.T) {
	eng := newFakeEngine()
	_, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1")))

	conn := dial(t, srv, "?id=mallory&codec=msgpack")
	assert.Equal(t, "connect conn-1 mallory", eng.next(t))

	send := func(typ string, x, y float64) {
		t.Helper()
		data, err := MsgpackCodec{}.Marshal(map[string]any{
			"type": typ,
			"data": map[string]any{"x": x, "y": y},
		})
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))
	}
	send(TypeSpawnAt, math.NaN(), math.Inf(1))
	send(TypeCursorMove, math.Inf(-1), 0)
	send(TypePick, 0, math.NaN())
	send(TypeRelease, math.NaN(), math.NaN())
	send(TypeSpawnAt, 5, 6)

	assert.Equal(t, "release conn-1", eng.next(t))
	assert.Equal(t, "spawnAt conn-1 5,6", eng.next(t))
}

func TestServeHTTP_CloseDisconnects(t *testing.T) {
	eng := newFakeEngine()
	hub, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1")))

	conn := dial(t, srv, "?id=alice")
	eng.next(t)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Equal(t, "disconnect conn-1", eng.next(t))
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClose_WaitsForDisconnects(t *testing.T) {
	eng := newFakeEngine()
	hub, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1", "conn-2")))

	dial(t, srv, "?id=alice")
	dial(t, srv, "?id=bob")
	eng.next(t)
	eng.next(t)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	hub.Close()

	// Both disconnects are queued before Close returns.
	require.Len(t, eng.calls, 2)
	got := []string{<-eng.calls, <-eng.calls}
	assert.ElementsMatch(t, []string{"disconnect conn-1", "disconnect conn-2"}, got)
	assert.Zero(t, hub.Len())
}

func TestServeHTTP_ConnectRefusedClosesSocket(t *testing.T) {
	eng := newFakeEngine()
	eng.connectErr = &session.AuthError{ConnectionID: "conn-1", Reason: "missing participant id"}
	hub, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1")))

	conn := dial(t, srv, "?id=alice")
	eng.next(t)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Equal(t, "authentication error", ce.Text)
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcast_JSONFrames(t *testing.T) {
	eng := newFakeEngine()
	hub, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1", "conn-2")))

	conn := dial(t, srv, "?id=alice")
	eng.next(t)
	other := dial(t, srv, "?id=bob")
	eng.next(t)

	hub.Broadcast(sampleSnapshot(), []string{"conn-1", "ghost"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeSync, got["type"])
	body := got["data"].(map[string]any)["bodies"].([]any)[0].(map[string]any)
	assert.Equal(t, 30.0, body["radius"])
	assert.NotContains(t, body, "width")
	assert.Nil(t, body["mass"])

	// conn-2 was not a recipient
	_ = other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcast_MsgpackFrames(t *testing.T) {
	eng := newFakeEngine()
	hub, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1")))

	conn := dial(t, srv, "?id=alice&codec=msgpack")
	eng.next(t)

	want := sampleSnapshot()
	hub.Broadcast(want, []string{"conn-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)

	var got Outbound
	require.NoError(t, MsgpackCodec{}.Unmarshal(data, &got))
	assert.Equal(t, TypeSync, got.Type)
	require.Len(t, got.Data.Bodies, 1)
	body := got.Data.Bodies[0]
	assert.Equal(t, want.Bodies[0].Position, body.Position)
	assert.Equal(t, "Circle Body", body.Label)
	require.NotNil(t, body.Radius)
	assert.Equal(t, 30.0, *body.Radius)
	assert.Nil(t, body.Width)
	assert.Nil(t, body.Mass)
	assert.Empty(t, got.Data.Constraints)
}

func TestBroadcast_FullBufferDrops(t *testing.T) {
	hub := NewHub(newFakeEngine(), WithSendBuffer(1))
	c := &client{id: "slow", codec: JSONCodec{}, send: make(chan []byte, 1), done: make(chan struct{})}
	require.True(t, hub.register(c))

	hub.Broadcast(sampleSnapshot(), []string{"slow"})
	hub.Broadcast(sampleSnapshot(), []string{"slow"})
	hub.Broadcast(sampleSnapshot(), []string{"slow"})

	assert.Len(t, c.send, 1)
	assert.Equal(t, int64(2), hub.Dropped())
}

func TestBroadcast_EncodesOncePerCodec(t *testing.T) {
	hub := NewHub(newFakeEngine())
	a := &client{id: "a", codec: JSONCodec{}, send: make(chan []byte, 1), done: make(chan struct{})}
	b := &client{id: "b", codec: JSONCodec{}, send: make(chan []byte, 1), done: make(chan struct{})}
	m := &client{id: "m", codec: MsgpackCodec{}, send: make(chan []byte, 1), done: make(chan struct{})}
	for _, c := range []*client{a, b, m} {
		require.True(t, hub.register(c))
	}

	hub.Broadcast(sampleSnapshot(), []string{"a", "b", "m"})

	fa, fb, fm := <-a.send, <-b.send, <-m.send
	assert.Same(t, &fa[0], &fb[0], "JSON clients share one encoding")
	assert.NotEqual(t, fa, fm)
}

func TestClose_RefusesNewConnections(t *testing.T) {
	eng := newFakeEngine()
	hub, srv := startServer(t, eng, WithIDGenerator(session.NewFixedGenerator("conn-1", "conn-2")))

	conn := dial(t, srv, "?id=alice")
	eng.next(t)

	hub.Close()
	assert.Equal(t, "disconnect conn-1", eng.next(t))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	late := dial(t, srv, "?id=bob")
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Empty(t, eng.calls)
}

func TestHealth(t *testing.T) {
	_, srv := startServer(t, newFakeEngine())

	resp, err := http.Get(srv.URL + PathHealth)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, int64(7), h.Engine.Tick)
	assert.Equal(t, int64(12), h.Engine.Bodies)
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = CodecByName("msgpack")
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, c.FrameType())

	_, err = CodecByName("protobuf")
	assert.Error(t, err)
}

func TestMsgpackCodec_DecodesInbound(t *testing.T) {
	data, err := MsgpackCodec{}.Marshal(map[string]any{
		"type": "pick",
		"data": map[string]any{"x": 1.5, "y": 2.5, "isBind": true},
	})
	require.NoError(t, err)

	var msg Inbound
	require.NoError(t, MsgpackCodec{}.Unmarshal(data, &msg))
	assert.Equal(t, Inbound{Type: "pick", Data: Input{X: 1.5, Y: 2.5, IsBind: true}}, msg)
}
