package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	viewapp "plc-datalogger/internal/view/application"
)

const (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 30 * time.Second
)

// liveMessage is exchanged on the live socket.
type liveMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// liveRequest is sent by clients. Only "select" is understood.
type liveRequest struct {
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
}

// LiveHandler pushes table and chart updates over a WebSocket and accepts
// chart column selections from the client.
type LiveHandler struct {
	broker   *Broker
	table    *viewapp.TableProjection
	chart    *viewapp.ChartProjection
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewLiveHandler constructs a handler.
func NewLiveHandler(broker *Broker, table *viewapp.TableProjection, chart *viewapp.ChartProjection, logger *log.Logger) (*LiveHandler, error) {
	if broker == nil {
		return nil, errors.New("live handler: nil broker")
	}
	if table == nil || chart == nil {
		return nil, errors.New("live handler: nil projection")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LiveHandler{
		broker: broker,
		table:  table,
		chart:  chart,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		logger: logger,
	}, nil
}

// ServeHTTP handles GET /api/v1/live.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("live upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := h.write(conn, h.snapshot("table", h.table.State())); err != nil {
		return
	}
	if err := h.write(conn, h.snapshot("chart", h.chart.Chart())); err != nil {
		return
	}

	// Only this goroutine writes; the reader hands replies over.
	replies := make(chan liveMessage, 4)
	done := make(chan struct{})
	go h.readLoop(conn, replies, done)

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(liveWriteWait))
				return
			}
			if err := h.write(conn, liveMessage{Type: msg.Event, Payload: msg.Payload}); err != nil {
				return
			}
			if msg.Event == EventRow || msg.Event == EventCleared || msg.Event == EventRollover {
				if err := h.write(conn, h.snapshot("chart", h.chart.Chart())); err != nil {
					return
				}
			}
		case reply := <-replies:
			if err := h.write(conn, reply); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *LiveHandler) readLoop(conn *websocket.Conn, replies chan<- liveMessage, done chan<- struct{}) {
	defer close(done)
	for {
		var req liveRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		var reply liveMessage
		switch req.Type {
		case "select":
			if err := h.chart.SetSelected(req.Columns); err != nil {
				reply = liveMessage{Type: "error", Message: err.Error()}
			} else {
				reply = h.snapshot("chart", h.chart.Chart())
			}
		case "ping":
			reply = liveMessage{Type: "pong"}
		default:
			reply = liveMessage{Type: "error", Message: "unknown message type: " + req.Type}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *LiveHandler) snapshot(kind string, v any) liveMessage {
	payload, err := json.Marshal(v)
	if err != nil {
		return liveMessage{Type: "error", Message: err.Error()}
	}
	return liveMessage{Type: kind, Payload: payload}
}

func (h *LiveHandler) write(conn *websocket.Conn, msg liveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}
