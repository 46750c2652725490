// Package ws streams scheduler events to browser clients over WebSocket
// and accepts control messages on a second socket.
//
// Routes:
//
//	/events   server -> client: {"type":"players",...} then {"type":"event",...}
//	/control  client -> server: {"op":"play","id":"main"} -> {"ok":true}
//	/healthz  JSON summary of the scheduler
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChuLiYu/workclip/internal/journal"
	"github.com/ChuLiYu/workclip/internal/scheduler"
	"github.com/ChuLiYu/workclip/pkg/types"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

// Source is the event and stats side of the scheduler.
type Source interface {
	Subscribe(fn scheduler.EventFunc) func()
	GetStats() scheduler.Stats
}

// Controller is the control side of the scheduler.
type Controller interface {
	Play(id types.PlayerID) error
	Pause(id types.PlayerID) error
	Resume(id types.PlayerID) error
	StopPlayer(id types.PlayerID) error
	Replay(id types.PlayerID) error
	Seek(id types.PlayerID, percent float64) error
	List() []types.PlayerStatus
}

// Message is the envelope sent on /events.
type Message struct {
	Type    string               `json:"type"`
	Event   *journal.Event       `json:"event,omitempty"`
	Players []types.PlayerStatus `json:"players,omitempty"`
}

// Command is a request received on /control.
type Command struct {
	Op      string  `json:"op"`
	ID      string  `json:"id"`
	Percent float64 `json:"percent"`
}

// Reply answers a Command.
type Reply struct {
	OK    bool                 `json:"ok"`
	Error string               `json:"error,omitempty"`
	List  []types.PlayerStatus `json:"players,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans scheduler events out to connected clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	src     Source
	ctrl    Controller
	unsub   func()
	dropped atomic.Uint64
	start   time.Time
	log     zerolog.Logger

	upgrader websocket.Upgrader
}

// NewHub subscribes to src. ctrl may be nil, which disables /control.
func NewHub(src Source, ctrl Controller) *Hub {
	h := &Hub{
		clients:  make(map[*client]struct{}),
		src:      src,
		ctrl:     ctrl,
		start:    time.Now(),
		log:      log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	h.unsub = src.Subscribe(h.publish)
	return h
}

// Close unsubscribes and disconnects every client.
func (h *Hub) Close() {
	h.unsub()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// Clients returns the number of connected event clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// publish runs inside the scheduler lock and must not block.
func (h *Hub) publish(ev journal.Event) {
	data, err := json.Marshal(Message{Type: "event", Event: &ev})
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Mux returns a handler with all routes registered.
func (h *Hub) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.HandleEvents)
	mux.HandleFunc("/control", h.HandleControl)
	mux.HandleFunc("/healthz", h.HandleHealth)
	return mux
}

// ListenAndServe serves Mux on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Mux()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	h.log.Info().Str("addr", addr).Msg("WebSocket server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	// the player list goes out before any event so clients can seed their view
	if h.ctrl != nil {
		if data, err := json.Marshal(Message{Type: "players", Players: h.ctrl.List()}); err == nil {
			c.send <- data
		}
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("event client connected")

	go h.writePump(c)
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) HandleControl(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		http.Error(w, "control disabled", http.StatusNotFound)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				if conn.WriteJSON(Reply{Error: err.Error()}) != nil {
					return
				}
				continue
			}
			return
		}
		if err := conn.WriteJSON(h.apply(cmd)); err != nil {
			return
		}
	}
}

// apply must not hold h.mu: the scheduler publishes back into the hub.
func (h *Hub) apply(cmd Command) Reply {
	id := types.PlayerID(cmd.ID)
	var err error
	switch cmd.Op {
	case "play":
		err = h.ctrl.Play(id)
	case "pause":
		err = h.ctrl.Pause(id)
	case "resume":
		err = h.ctrl.Resume(id)
	case "stop":
		err = h.ctrl.StopPlayer(id)
	case "replay":
		err = h.ctrl.Replay(id)
	case "seek":
		err = h.ctrl.Seek(id, cmd.Percent)
	case "list":
		return Reply{OK: true, List: h.ctrl.List()}
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}
	if err != nil {
		return Reply{Error: err.Error()}
	}
	return Reply{OK: true}
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := h.src.GetStats()
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"players":  st.Players,
		"ticks":    st.Ticks,
		"states":   st.States,
		"last_seq": st.LastSeq,
		"uptime_s": time.Since(h.start).Seconds(),
		"clients":  h.Clients(),
		"dropped":  h.Dropped(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("write health response")
	}
}
