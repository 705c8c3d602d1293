package lobby

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // send ping before pong wait expires, 10% margin for network jitter
	MaxMessageSize = 4096                // maximum frame size allowed from peer
)

// ReadPump is the one logical worker for this connection: it reads inbound
// frames and dispatches them inline, which preserves per-connection FIFO
// order. Runs until the peer goes away or the connection is force-closed;
// the deferred cleanup removes the connection from every registry it
// participates in.
func (c *Conn) ReadPump(bus *MessageBus, gate *BanGate, limiter *rate.Limiter, onClose func(*Conn)) {
	defer func() {
		c.Close()
		onClose(c)
	}()

	c.ws.SetReadLimit(MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("unexpected_close",
					"conn_id", c.ID,
					"username", c.Username,
					"error", err.Error(),
				)
			}
			break
		}

		// check rate limit
		if !limiter.Allow() { // returns true if a token is available then consumes it
			slog.Warn("rate_limit_exceeded",
				"conn_id", c.ID,
				"username", c.Username,
			)
			c.Send(ErrorEnvelope("rate limit exceeded"))
			continue
		}

		// defense-in-depth: a ban issued while this socket was open takes
		// effect on the next inbound frame, not on next reconnect
		if banned, _ := gate.IsBanned(c.Username, c.RemoteAddr); banned {
			slog.Info("banned_mid_session",
				"conn_id", c.ID,
				"username", c.Username,
			)
			if env, err := NewEnvelope(MsgDisconnect, DisconnectPayload{Reason: "banned"}); err == nil {
				c.Send(env)
			}
			break
		}

		bus.Dispatch(c, raw)
	}
}

// WritePump drains the send channel onto the socket and keeps the
// ping/pong heartbeat going. Exits when Close closes the send channel.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.SendChannel:
			c.ws.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
