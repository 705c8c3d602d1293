package lobby

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// HandlerFunc processes one decoded inbound frame. A non-nil reply is sent
// back to the originating connection; a non-nil error becomes an "error"
// frame to the sender and nothing else.
type HandlerFunc func(c *Conn, payload json.RawMessage) (*Envelope, error)

// MessageBus is the typed publish/subscribe router for one channel group.
// Handlers are registered once at construction; dispatch looks the tag up
// in a static map.
type MessageBus struct {
	channel  string
	registry *ConnectionRegistry
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// constructor for MessageBus
func NewMessageBus(channel string, registry *ConnectionRegistry) *MessageBus {
	return &MessageBus{
		channel:  channel,
		registry: registry,
		handlers: make(map[string]HandlerFunc),
		logger:   slog.Default(),
	}
}

// Registry exposes the connection registry backing this bus
func (b *MessageBus) Registry() *ConnectionRegistry {
	return b.registry
}

// On binds a handler to a message type. At most one handler per tag;
// a second registration for the same tag is a configuration error.
func (b *MessageBus) On(msgType string, handler HandlerFunc) error {
	if _, exists := b.handlers[msgType]; exists {
		return fmt.Errorf("handler already registered for message type %q on channel %q", msgType, b.channel)
	}
	b.handlers[msgType] = handler
	return nil
}

// MustOn is On for the wiring in main, where a duplicate tag is a startup defect
func (b *MessageBus) MustOn(msgType string, handler HandlerFunc) {
	if err := b.On(msgType, handler); err != nil {
		panic(err)
	}
}

// Dispatch decodes one raw inbound frame and routes it to its handler.
// Called inline from the connection's read pump, so frames from a single
// connection are processed in the order received.
func (b *MessageBus) Dispatch(c *Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.logger.Warn("malformed_frame",
			"channel", b.channel,
			"conn_id", c.ID,
			"error", err.Error(),
		)
		c.Send(ErrorEnvelope("malformed frame"))
		return
	}

	handler, ok := b.handlers[env.Type]
	if !ok {
		// unknown types are dropped with a diagnostic, never crash the connection
		b.logger.Warn("unknown_message_type",
			"channel", b.channel,
			"conn_id", c.ID,
			"type", env.Type,
		)
		c.Send(ErrorEnvelope(fmt.Sprintf("unknown message type %q", env.Type)))
		return
	}

	reply, err := b.invoke(handler, c, env)
	if err != nil {
		b.logger.Error("handler_failed",
			"channel", b.channel,
			"conn_id", c.ID,
			"type", env.Type,
			"error", err.Error(),
		)
		c.Send(ErrorEnvelope(err.Error()))
		return
	}
	if reply != nil {
		c.Send(reply)
	}
}

// invoke isolates a handler failure to the one message: a panic is recovered
// and converted into an error reply, the bus and every other connection's
// in-flight processing stay untouched.
func (b *MessageBus) invoke(handler HandlerFunc, c *Conn, env Envelope) (reply *Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler_panicked",
				"channel", b.channel,
				"conn_id", c.ID,
				"type", env.Type,
				"panic", fmt.Sprint(r),
			)
			reply = nil
			err = fmt.Errorf("internal error handling %q", env.Type)
		}
	}()
	return handler(c, env.Payload)
}

// SendTo delivers the envelope to one connection; unknown ids are a no-op
func (b *MessageBus) SendTo(connID string, env *Envelope) {
	if c, ok := b.registry.Get(connID); ok {
		c.Send(env)
	}
}

// SendToAll delivers the envelope to every admitted connection
func (b *MessageBus) SendToAll(env *Envelope) {
	b.registry.Broadcast(nil, env)
}

// SendToMatching delivers the envelope to every connection matching the predicate
func (b *MessageBus) SendToMatching(pred func(*Conn) bool, env *Envelope) {
	b.registry.Broadcast(pred, env)
}
