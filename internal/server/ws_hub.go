package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nubi-io/nubi/internal/fanout"
	"github.com/nubi-io/nubi/internal/orchestrator"
)

// Hub upgrades incoming connections to WebSocket, subscribes each one to
// the Fanout as a sink, and routes each connection's inbound command
// frames back into the Orchestrator.
type Hub struct {
	fanout *fanout.Fanout
	orch   *orchestrator.Orchestrator
}

// NewHub wires a Hub over the Fanout it subscribes clients to and the
// Orchestrator it routes commands to.
func NewHub(f *fanout.Fanout, orch *orchestrator.Orchestrator) *Hub {
	return &Hub{fanout: f, orch: orch}
}

// wsClient adapts one WebSocket connection into a fanout.Sink.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// Deliver implements fanout.Sink. A full buffer or closed connection
// returns an error rather than blocking the Fanout's emit loop, and the
// Fanout then drops this sink.
func (c *wsClient) Deliver(e fanout.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errClosed
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var errClosed = errWSClosed{}

type errWSClosed struct{}

func (errWSClosed) Error() string { return "websocket client closed" }

// ServeWS upgrades the request, subscribes the connection to every Fanout
// event type, and drives its read/write pumps until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	h.fanout.Subscribe(client)
	slog.Info("ws client registered")

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.fanout.Unsubscribe(client)
		client.close()
		client.conn.Close()
	}()
	client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleCommand(client, data)
	}
}

func (h *Hub) handleCommand(client *wsClient, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reply, err := dispatchCommand(ctx, h.orch, data)
	if err != nil {
		slog.Warn("ws command failed", "error", err)
	}
	if reply == nil {
		return
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return
	}
	client.Deliver(fanout.Event{Type: fanout.EventCommandResult, Timestamp: time.Now().UTC(), Data: raw})
}
