package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ragconsole/internal/console"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocketHandler pushes the full console state to each connected client
// whenever any part of it changes.
type WebSocketHandler struct {
	app      *console.Console
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(app *console.Console, policy *originPolicy) *WebSocketHandler {
	return &WebSocketHandler{
		app: app,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return policy.allow(r)
			},
		},
	}
}

type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
}

type wsStatePayload struct {
	Reason string        `json:"reason"`
	State  console.State `json:"state"`
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := h.app.Events().Subscribe()
	defer h.app.Events().Unsubscribe(events)

	// Only the loop below writes; the reader hands replies over this channel.
	replies := make(chan wsEnvelope, 8)
	closed := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go h.readLoop(conn, replies, closed, stop)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if !h.write(conn, h.stateEnvelope("connected")) {
		return
	}

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !h.write(conn, h.stateEnvelope(ev.Type)) {
				return
			}
		case env := <-replies:
			if !h.write(conn, env) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn, replies chan<- wsEnvelope, closed, stop chan struct{}) {
	defer close(closed)

	reply := func(env wsEnvelope) bool {
		select {
		case replies <- env:
			return true
		case <-stop:
			return false
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed", "error", err)
			}
			return
		}

		var envelope wsEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			if !reply(errorEnvelope("invalid message format")) {
				return
			}
			continue
		}

		switch envelope.Type {
		case "dismiss":
			// The resulting notice event pushes the new state.
			h.app.Notices().Dismiss()
		case "ping":
			if !reply(wsEnvelope{Type: "pong"}) {
				return
			}
		case "state":
			if !reply(h.stateEnvelope("requested")) {
				return
			}
		default:
			if !reply(errorEnvelope("unknown message type: " + envelope.Type)) {
				return
			}
		}
	}
}

func (h *WebSocketHandler) stateEnvelope(reason string) wsEnvelope {
	return wsEnvelope{
		Type:    "state",
		Payload: mustMarshal(wsStatePayload{Reason: reason, State: h.app.State()}),
	}
}

func errorEnvelope(msg string) wsEnvelope {
	return wsEnvelope{
		Type:    "error",
		Payload: mustMarshal(wsErrorPayload{Message: msg}),
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, envelope wsEnvelope) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(envelope); err != nil {
		slog.Error("websocket write failed", "error", err)
		return false
	}
	return true
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
