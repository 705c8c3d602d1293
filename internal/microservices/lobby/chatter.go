package lobby

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lobbyserver/internal/microservices/http-api/models"
	"lobbyserver/internal/microservices/http-api/repository"
)

var (
	ErrMuted        = errors.New("you are muted")
	ErrNotInChannel = errors.New("not joined to a chat channel")
)

// DefaultChannel is where every chatter lands after login
const DefaultChannel = "lobby"

const auditWriteTimeout = 5 * time.Second

// Chatter represents one connected chat participant
type Chatter struct {
	ConnID      string `json:"conn_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	ChannelID   string `json:"channel_id"`
}

// MuteStore holds temporary mutes; expiry is the store's problem (Redis TTL
// in production, a map with deadlines in tests).
type MuteStore interface {
	Mute(ctx context.Context, username string, duration time.Duration) error
	Unmute(ctx context.Context, username string) error
	IsMuted(ctx context.Context, username string) (bool, error)
}

// ChatterRegistry is the single source of truth for connected chat
// participants. Policy: last connection wins, at most one live session per
// identity.
type ChatterRegistry struct {
	byUsername map[string]*Chatter
	byConn     map[string]*Chatter
	mu         sync.RWMutex // read-write mutex for concurrent access

	bus    *MessageBus
	mutes  MuteStore
	audit  repository.AuditRepository
	logger *slog.Logger
}

// constructor for ChatterRegistry
func NewChatterRegistry(bus *MessageBus, mutes MuteStore, audit repository.AuditRepository) *ChatterRegistry {
	return &ChatterRegistry{
		byUsername: make(map[string]*Chatter),
		byConn:     make(map[string]*Chatter),
		bus:        bus,
		mutes:      mutes,
		audit:      audit,
		logger:     slog.Default(),
	}
}

// Join registers the connection as a chat participant. A duplicate join for
// an already-present identity replaces the prior entry and force-disconnects
// the stale connection.
func (r *ChatterRegistry) Join(c *Conn, displayName string) *Chatter {
	chatter := &Chatter{
		ConnID:      c.ID,
		Username:    c.Username,
		DisplayName: displayName,
		ChannelID:   DefaultChannel,
	}

	r.mu.Lock()
	stale := r.byUsername[c.Username]
	if stale != nil {
		delete(r.byConn, stale.ConnID)
	}
	r.byUsername[c.Username] = chatter
	r.byConn[c.ID] = chatter
	r.mu.Unlock()

	if stale != nil {
		r.logger.Info("chatter_session_replaced",
			"username", c.Username,
			"old_conn_id", stale.ConnID,
			"new_conn_id", c.ID,
		)
		r.disconnect(stale.ConnID, "logged in from another connection")
	}

	r.logger.Info("chatter_joined",
		"username", c.Username,
		"conn_id", c.ID,
		"channel", chatter.ChannelID,
	)
	r.broadcastNotice(chatter.ChannelID, chatter.DisplayName+" has joined the chat")
	return chatter
}

// Leave removes the participant for the connection. Safe to call for
// connections that never joined, or after the entry was replaced.
func (r *ChatterRegistry) Leave(connID string) {
	r.mu.Lock()
	chatter, ok := r.byConn[connID]
	if ok {
		delete(r.byConn, connID)
		// only clear the identity slot if this connection still owns it
		if cur := r.byUsername[chatter.Username]; cur != nil && cur.ConnID == connID {
			delete(r.byUsername, chatter.Username)
		}
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("chatter_left",
			"username", chatter.Username,
			"conn_id", connID,
		)
		r.broadcastNotice(chatter.ChannelID, chatter.DisplayName+" has left the chat")
	}
}

// broadcastNotice fans a system status line out to the channel
func (r *ChatterRegistry) broadcastNotice(channelID, text string) {
	if env, err := NewEnvelope(MsgSystem, SystemNotice{Text: text}); err == nil {
		r.BroadcastToChannel(channelID, env)
	}
}

// Get returns the chatter for a connection id
func (r *ChatterRegistry) Get(connID string) (*Chatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chatter, ok := r.byConn[connID]
	return chatter, ok
}

// Chatters returns a point-in-time copy of all participants
func (r *ChatterRegistry) Chatters() []Chatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chatter, 0, len(r.byConn))
	for _, chatter := range r.byConn {
		out = append(out, *chatter)
	}
	return out
}

// Mute silences the identity for the duration
func (r *ChatterRegistry) Mute(ctx context.Context, username string, duration time.Duration) error {
	return r.mutes.Mute(ctx, username, duration)
}

// Unmute lifts a mute ahead of its expiry
func (r *ChatterRegistry) Unmute(ctx context.Context, username string) error {
	return r.mutes.Unmute(ctx, username)
}

// IsMuted reports whether the identity is currently muted. A mute-store
// failure is logged and treated as not muted; mutes are a convenience, not
// a safety control like bans.
func (r *ChatterRegistry) IsMuted(ctx context.Context, username string) bool {
	muted, err := r.mutes.IsMuted(ctx, username)
	if err != nil {
		r.logger.Warn("mute_store_lookup_failed",
			"username", username,
			"error", err.Error(),
		)
		return false
	}
	return muted
}

// SwitchChannel moves the participant to another chat channel
func (r *ChatterRegistry) SwitchChannel(connID, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chatter, ok := r.byConn[connID]
	if !ok {
		return ErrNotInChannel
	}
	chatter.ChannelID = channelID
	return nil
}

// BroadcastToChannel fans the envelope out to every chatter in the channel
func (r *ChatterRegistry) BroadcastToChannel(channelID string, env *Envelope) {
	r.mu.RLock()
	targets := make([]string, 0, len(r.byConn))
	for connID, chatter := range r.byConn {
		if chatter.ChannelID == channelID {
			targets = append(targets, connID)
		}
	}
	r.mu.RUnlock()

	for _, connID := range targets {
		r.bus.SendTo(connID, env)
	}
}

// SendChatMessage fans a chat line out to the sender's channel and forwards
// it to the audit log. Muted senders are rejected and nothing is emitted.
func (r *ChatterRegistry) SendChatMessage(ctx context.Context, senderConnID, text string) error {
	chatter, ok := r.Get(senderConnID)
	if !ok {
		return ErrNotInChannel
	}
	if r.IsMuted(ctx, chatter.Username) {
		return ErrMuted
	}

	env, err := NewEnvelope(MsgChat, ChatBroadcast{
		From:      chatter.DisplayName,
		Channel:   chatter.ChannelID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	r.BroadcastToChannel(chatter.ChannelID, env)

	// audit write happens off the hot path; a storage hiccup must never
	// block or fail the chat fan-out
	go r.appendAudit(chatter.Username, chatter.ChannelID, text)

	return nil
}

func (r *ChatterRegistry) appendAudit(username, channelID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	entry := &models.AuditEntry{
		Kind:   models.AuditChatMessage,
		Actor:  username,
		Target: channelID,
		Detail: text,
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		r.logger.Warn("audit_append_failed",
			"username", username,
			"error", err.Error(),
		)
	}
}

// DisconnectUser force-closes the live session of the identity, if any.
// Returns true when a session was found.
func (r *ChatterRegistry) DisconnectUser(username, reason string) bool {
	r.mu.RLock()
	chatter, ok := r.byUsername[username]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	r.disconnect(chatter.ConnID, reason)
	return true
}

// disconnect sends the disconnect instruction then closes the socket
func (r *ChatterRegistry) disconnect(connID, reason string) {
	c, ok := r.bus.Registry().Get(connID)
	if !ok {
		return
	}
	if env, err := NewEnvelope(MsgDisconnect, DisconnectPayload{Reason: reason}); err == nil {
		c.Send(env)
	}
	c.Close()
}
