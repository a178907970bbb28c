package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Simon2219/BetterIntelligence/internal/api/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	sendBuffer = 32
)

// envelope is the wire shape of every event in both directions.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is the ephemeral binding of one websocket to an authenticated
// identity. All outbound traffic goes through the send queue and a single
// writer goroutine, which guarantees per-connection emission order.
type Conn struct {
	id       string
	userID   string
	username string
	ws       *websocket.Conn
	send     chan envelope
	log      zerolog.Logger
}

// emit queues an event, blocking if the queue is momentarily full. Used on
// the connection's own read path where ordering matters more than latency.
func (c *Conn) emit(event string, payload any) {
	metrics.RealtimeEventsTotal.WithLabelValues(event).Inc()
	c.send <- envelope{Event: event, Data: payload}
}

// trySend queues an event without blocking; broadcasts drop rather than
// stall on a slow connection.
func (c *Conn) trySend(event string, payload any) {
	select {
	case c.send <- envelope{Event: event, Data: payload}:
		metrics.RealtimeEventsTotal.WithLabelValues(event).Inc()
	default:
		c.log.Warn().Str("event", event).Str("conn_id", c.id).Msg("dropping event for slow connection")
	}
}

// writePump drains the send queue onto the wire. It owns all writes,
// including pings, and exits when the queue is closed by the hub.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
