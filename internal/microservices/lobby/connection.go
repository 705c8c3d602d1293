package lobby

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Conn is one live realtime connection. It is owned exclusively by the
// ConnectionRegistry that admitted it; the chatter and game-listing
// registries hold references, never copies.
type Conn struct {
	ID         string // unique identifier = key in registry map
	Username   string // authenticated username (from JWT)
	Role       string // authenticated role (from JWT)
	RemoteAddr string

	ws          *websocket.Conn
	SendChannel chan []byte // channel for outbound(chan <-) messages

	mu          sync.Mutex
	closed      bool
	writerOwned bool // a running write pump performs the socket teardown
}

// constructor for Conn
func NewConn(ws *websocket.Conn, username, role, remoteAddr string) *Conn {
	return &Conn{
		ID:          uuid.NewString(),
		Username:    username,
		Role:        role,
		RemoteAddr:  remoteAddr,
		ws:          ws,
		SendChannel: make(chan []byte, 256), // buffered so one slow peer never blocks a broadcast
	}
}

// Send marshals the envelope and queues it for the write pump.
// Sends to a closed or saturated connection are dropped silently; delivery
// confirmation is the transport's concern, not the caller's.
func (c *Conn) Send(env *Envelope) {
	data, err := env.ToJSON()
	if err != nil {
		slog.Error("failed_to_marshal_outbound_frame",
			"conn_id", c.ID,
			"type", env.Type,
			"error", err.Error(),
		)
		return
	}
	c.enqueue(data)
}

func (c *Conn) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.SendChannel <- data:
	default:
		slog.Warn("send_buffer_full",
			"conn_id", c.ID,
			"username", c.Username,
		)
	}
}

// startWritePump hands socket teardown to the write pump and launches it.
// Frames queued before Close (disconnect instructions in particular) are
// then drained onto the wire before the socket goes down.
func (c *Conn) startWritePump() {
	c.mu.Lock()
	c.writerOwned = true
	c.mu.Unlock()
	go c.WritePump()
}

// Close shuts the connection down. Safe to call any number of times from
// any goroutine; the first call wins. When a write pump owns the socket,
// Close only closes the send channel: the pump flushes what is queued,
// writes the close frame, and tears the socket down, which also unblocks
// the read pump. The direct socket close is the fallback for connections
// whose pumps never started.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.SendChannel)
	writerOwned := c.writerOwned
	c.mu.Unlock()
	if !writerOwned && c.ws != nil {
		c.ws.Close()
	}
}

// Closed reports whether Close has been called
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ConnectionRegistry tracks every admitted connection for one channel
// (player channel or game-host channel).
type ConnectionRegistry struct {
	conns map[string]*Conn
	// map store all admitted connections
	// key: connection ID, value: Conn pointer
	mu      sync.RWMutex // read-write mutex for concurrent access
	logger  *slog.Logger // pointer to structured logger for logging events
	channel string       // channel name, for log context only
	limit   rate.Limit   // inbound frame rate applied to each admitted connection
	burst   int
}

// constructor for ConnectionRegistry
func NewConnectionRegistry(channel string) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:   make(map[string]*Conn), // initialize empty map
		logger:  slog.Default(),
		channel: channel,
		limit:   rate.Limit(10), // 10 frames/sec with burst of 20, per connection
		burst:   20,
	}
}

// Admit registers the connection and returns its id
func (r *ConnectionRegistry) Admit(c *Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
	r.logger.Info("connection_admitted",
		"channel", r.channel,
		"conn_id", c.ID,
		"username", c.Username,
		"remote_addr", c.RemoteAddr,
	)
	return c.ID
}

// Remove drops the connection from the registry. Removing an unknown id is a no-op.
func (r *ConnectionRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		return
	}
	delete(r.conns, connID)
	r.logger.Info("connection_removed",
		"channel", r.channel,
		"conn_id", connID,
	)
}

// Get looks up a connection by id; ok is false for unknown ids
func (r *ConnectionRegistry) Get(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Count returns the number of admitted connections
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns a copy of the current connection set. Broadcasts iterate
// the copy so admit/remove during the send never trips the iteration.
func (r *ConnectionRegistry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast sends the envelope to every admitted connection matching the
// predicate. A nil predicate matches everything.
func (r *ConnectionRegistry) Broadcast(pred func(*Conn) bool, env *Envelope) {
	for _, c := range r.Snapshot() {
		if pred != nil && !pred(c) {
			continue
		}
		c.Send(env)
	}
}

// NewLimiter builds the per-connection inbound rate limiter
func (r *ConnectionRegistry) NewLimiter() *rate.Limiter {
	return rate.NewLimiter(r.limit, r.burst)
	// the limiter auto depletes tokens when Allow is called and refills over time
}

// CloseAll force-closes every admitted connection (shutdown path)
func (r *ConnectionRegistry) CloseAll() {
	for _, c := range r.Snapshot() {
		c.Close()
	}
	r.mu.Lock()
	r.conns = make(map[string]*Conn)
	// reset the map, for clearing all references
	// allowing garbage collection
	r.mu.Unlock()
}
