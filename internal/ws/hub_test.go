package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/workclip/internal/effects"
	"github.com/ChuLiYu/workclip/internal/scheduler"
	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/ChuLiYu/workclip/pkg/types"
)

func setup(t *testing.T) (*scheduler.Scheduler, *Hub, *httptest.Server) {
	t.Helper()
	sched, err := scheduler.New(scheduler.Config{}, scheduler.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	c := timeline.NewWorkClipContainer("root",
		timeline.NewWorkClip(effects.NewHold("a", 1), 0, 1),
	)
	_, err = sched.Add("p1", timeline.NewPlayer(c, timeline.PlayerOptions{Duration: 1}))
	require.NoError(t, err)

	hub := NewHub(sched, sched)
	srv := httptest.NewServer(hub.Mux())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return sched, hub, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEventsStream(t *testing.T) {
	sched, hub, srv := setup(t)
	conn := dial(t, srv, "/events")

	hello := readMessage(t, conn)
	assert.Equal(t, "players", hello.Type)
	require.Len(t, hello.Players, 1)
	assert.Equal(t, types.PlayerID("p1"), hello.Players[0].ID)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, sched.Play("p1"))

	msg := readMessage(t, conn)
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, types.EventState, msg.Event.Kind)
	assert.Equal(t, "PLAY", msg.Event.To)
	assert.NotZero(t, msg.Event.Seq)
}

func TestControlSocket(t *testing.T) {
	sched, _, srv := setup(t)
	conn := dial(t, srv, "/control")

	send := func(cmd Command) Reply {
		require.NoError(t, conn.WriteJSON(cmd))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var r Reply
		require.NoError(t, conn.ReadJSON(&r))
		return r
	}

	assert.True(t, send(Command{Op: "play", ID: "p1"}).OK)
	require.NoError(t, sched.Step(0.25))
	assert.True(t, send(Command{Op: "pause", ID: "p1"}).OK)
	assert.True(t, send(Command{Op: "seek", ID: "p1", Percent: 0.5}).OK)

	r := send(Command{Op: "list"})
	require.True(t, r.OK)
	require.Len(t, r.List, 1)
	assert.Equal(t, "PAUSE", r.List[0].State)
	assert.InDelta(t, 0.5, r.List[0].Percent, 1e-9)

	r = send(Command{Op: "play", ID: "nope"})
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "not found")

	r = send(Command{Op: "dance", ID: "p1"})
	assert.Contains(t, r.Error, "unknown op")
}

func TestHealth(t *testing.T) {
	sched, _, srv := setup(t)
	require.NoError(t, sched.Step(0.1))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1.0, body["players"])
	assert.Equal(t, 1.0, body["ticks"])
	assert.Equal(t, 0.0, body["clients"])
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	sched, hub, _ := setup(t)
	c := &client{send: make(chan []byte, 1)}
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	require.NoError(t, sched.Play("p1"))
	require.NoError(t, sched.StopPlayer("p1"))
	assert.Positive(t, hub.Dropped())
}

// brokenWriter 模擬連線已斷開的 ResponseWriter
type brokenWriter struct {
	header http.Header
}

func (b *brokenWriter) Header() http.Header { return b.header }

func (b *brokenWriter) WriteHeader(int) {}

func (b *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestHealthLogsWriteFailure(t *testing.T) {
	_, hub, _ := setup(t)
	var logs bytes.Buffer
	hub.log = zerolog.New(&logs)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	hub.HandleHealth(&brokenWriter{header: http.Header{}}, req)

	assert.Contains(t, logs.String(), "write health response")
	assert.Contains(t, logs.String(), "connection reset")
}
