package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/transport"
)

func TestServe_InvalidConfig(t *testing.T) {
	_, err := executeCommand(t, "serve", "--tick-rate", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "tick rate must be positive")
}

func TestServe_EnvironmentConfig(t *testing.T) {
	t.Setenv("TETHER_SEND_BUFFER", "-1")

	_, err := executeCommand(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send buffer must be positive")
}

func TestServe_MissingScene(t *testing.T) {
	_, err := executeCommand(t, "serve", "--addr", "127.0.0.1:0", "--scene", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scene")
}

func TestServe_SessionRoundTrip(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "tether.db")
	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", LogFormat: "text"},
		ready:       func(addr string) { ready <- addr },
	}

	cmd := newServeCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--journal", journalPath, "--tick-rate", "50"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + transport.PathHealth)
	require.NoError(t, err)
	var health transport.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	// built-in scene: 11 bodies plus the car's 3
	assert.Equal(t, int64(14), health.Engine.Bodies)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+transport.PathSession+"?id=alice", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Bodies []json.RawMessage `json:"bodies"`
		} `json:"data"`
	}
	// A tick may land between registration and the connect; wait for the avatar.
	for len(msg.Data.Bodies) != 16 {
		frameType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, frameType)
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, transport.TypeSync, msg.Type)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, out.String(), "Serving on "+addr)

	st, err := store.Open(journalPath)
	require.NoError(t, err)
	defer st.Close()
	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[store.KindConnect])
	assert.Equal(t, 1, counts[store.KindDisconnect], "open sessions are disconnected on shutdown")
}
