package lobby

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GameAdvertisement represents one host-advertised game. Active while its
// heartbeat stays within the timeout; removal (explicit, boot, or expiry)
// is terminal.
type GameAdvertisement struct {
	ID            string       `json:"id"`
	HostConnID    string       `json:"host_conn_id"`
	HostAddress   string       `json:"host_address"`
	HostUsername  string       `json:"host_username"`
	Metadata      GameMetadata `json:"metadata"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
}

// GameListingRegistry tracks advertised games and publishes listing deltas
// to watcher connections on the player channel. Hosts churn constantly -
// games appear, renew, and vanish without graceful shutdown - so a periodic
// sweep expires anything whose heartbeat goes stale.
type GameListingRegistry struct {
	games    map[string]*GameAdvertisement
	watchers map[string]bool // player-channel conn ids subscribed to deltas
	mu       sync.RWMutex
	// the single map lock makes the compare-and-remove in the sweep atomic
	// with respect to a concurrent keep-alive on the same game id

	playerBus *MessageBus // deltas go out here
	hostBus   *MessageBus // boot instructions go out here

	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
	now              func() time.Time // swappable clock for expiry tests
	logger           *slog.Logger
}

// constructor for GameListingRegistry
func NewGameListingRegistry(playerBus, hostBus *MessageBus, heartbeatTimeout, sweepInterval time.Duration) *GameListingRegistry {
	return &GameListingRegistry{
		games:            make(map[string]*GameAdvertisement),
		watchers:         make(map[string]bool),
		playerBus:        playerBus,
		hostBus:          hostBus,
		heartbeatTimeout: heartbeatTimeout,
		sweepInterval:    sweepInterval,
		now:              time.Now,
		logger:           slog.Default(),
	}
}

// PostGame records a new advertisement and publishes a "game-added" delta
// to all watchers. Returns the assigned game id.
func (r *GameListingRegistry) PostGame(host *Conn, meta GameMetadata) string {
	ad := &GameAdvertisement{
		ID:            uuid.NewString(),
		HostConnID:    host.ID,
		HostAddress:   host.RemoteAddr,
		HostUsername:  host.Username,
		Metadata:      meta,
		LastHeartbeat: r.now(),
	}

	r.mu.Lock()
	r.games[ad.ID] = ad
	r.mu.Unlock()

	r.logger.Info("game_posted",
		"game_id", ad.ID,
		"host", host.Username,
		"name", meta.Name,
	)
	r.publishDelta(MsgGameAdded, ad.ID, &meta)
	return ad.ID
}

// KeepAlive refreshes the heartbeat. Heartbeats are not broadcast.
// A keep-alive for a removed game is an internal defect on the host's side:
// logged, then a no-op.
func (r *GameListingRegistry) KeepAlive(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.games[gameID]
	if !ok {
		r.logger.Warn("keepalive_for_unknown_game", "game_id", gameID)
		return
	}
	// heartbeat timestamps are monotonically non-decreasing per game
	if now := r.now(); now.After(ad.LastHeartbeat) {
		ad.LastHeartbeat = now
	}
}

// UpdateGame replaces the visible metadata and publishes a "game-updated"
// delta. Updates for unknown games are logged no-ops.
func (r *GameListingRegistry) UpdateGame(gameID string, meta GameMetadata) {
	r.mu.Lock()
	ad, ok := r.games[gameID]
	if ok {
		ad.Metadata = meta
		if now := r.now(); now.After(ad.LastHeartbeat) {
			ad.LastHeartbeat = now
		}
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("update_for_unknown_game", "game_id", gameID)
		return
	}
	r.publishDelta(MsgGameUpdated, gameID, &meta)
}

// RemoveGame removes the advertisement and publishes a "game-removed" delta.
// Removing an unknown id is a no-op.
func (r *GameListingRegistry) RemoveGame(gameID string) {
	r.mu.Lock()
	_, ok := r.games[gameID]
	delete(r.games, gameID)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Info("game_removed", "game_id", gameID)
	r.publishDelta(MsgGameRemoved, gameID, nil)
}

// BootGame is the moderator-triggered removal: drops the advertisement and
// sends a disconnect instruction to the owning host connection. Booting an
// unknown id is a no-op with no error surfaced to the caller.
func (r *GameListingRegistry) BootGame(gameID string) {
	r.mu.Lock()
	ad, ok := r.games[gameID]
	delete(r.games, gameID)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Info("game_booted",
		"game_id", gameID,
		"host", ad.HostUsername,
	)
	r.publishDelta(MsgGameRemoved, gameID, nil)

	if host, found := r.hostBus.Registry().Get(ad.HostConnID); found {
		if env, err := NewEnvelope(MsgDisconnect, DisconnectPayload{Reason: "game booted by moderator"}); err == nil {
			host.Send(env)
		}
		host.Close()
	}
}

// OwnedBy reports whether the advertisement exists and belongs to the
// given host connection.
func (r *GameListingRegistry) OwnedBy(gameID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ad, ok := r.games[gameID]
	return ok && ad.HostConnID == connID
}

// ListGames returns a point-in-time snapshot, safe to call concurrently
// with mutation.
func (r *GameListingRegistry) ListGames() []GameAdvertisement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]GameAdvertisement, 0, len(r.games))
	for _, ad := range r.games {
		out = append(out, *ad)
	}
	return out
}

// Watch subscribes a player-channel connection to listing deltas and sends
// it the current listing as one snapshot frame.
func (r *GameListingRegistry) Watch(connID string) {
	r.mu.Lock()
	r.watchers[connID] = true
	r.mu.Unlock()

	if env, err := NewEnvelope(MsgGameListing, r.ListGames()); err == nil {
		r.playerBus.SendTo(connID, env)
	}
}

// Unwatch unsubscribes the connection from listing deltas
func (r *GameListingRegistry) Unwatch(connID string) {
	r.mu.Lock()
	delete(r.watchers, connID)
	r.mu.Unlock()
}

// HostDisconnected removes every advertisement owned by the connection,
// publishing the same deltas an explicit removal would. Called from the
// host channel's disconnect cleanup.
func (r *GameListingRegistry) HostDisconnected(connID string) {
	r.mu.Lock()
	var removed []string
	for id, ad := range r.games {
		if ad.HostConnID == connID {
			removed = append(removed, id)
			delete(r.games, id)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.logger.Info("game_removed_host_disconnected",
			"game_id", id,
			"conn_id", connID,
		)
		r.publishDelta(MsgGameRemoved, id, nil)
	}
}

// Start runs the periodic expiry sweep until the context is cancelled
func (r *GameListingRegistry) Start(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Sweep expires every advertisement whose heartbeat age exceeds the timeout,
// exactly as RemoveGame would.
func (r *GameListingRegistry) Sweep() {
	cutoff := r.now().Add(-r.heartbeatTimeout)

	r.mu.Lock()
	var expired []string
	for id, ad := range r.games {
		if ad.LastHeartbeat.Before(cutoff) {
			expired = append(expired, id)
			delete(r.games, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.logger.Info("game_expired", "game_id", id)
		r.publishDelta(MsgGameRemoved, id, nil)
	}
}

// publishDelta sends one incremental change notification to every watcher
func (r *GameListingRegistry) publishDelta(msgType, gameID string, meta *GameMetadata) {
	env, err := NewEnvelope(msgType, GameDelta{GameID: gameID, Metadata: meta})
	if err != nil {
		r.logger.Error("failed_to_marshal_delta",
			"game_id", gameID,
			"type", msgType,
			"error", err.Error(),
		)
		return
	}

	r.mu.RLock()
	targets := make([]string, 0, len(r.watchers))
	for connID := range r.watchers {
		targets = append(targets, connID)
	}
	r.mu.RUnlock()

	for _, connID := range targets {
		r.playerBus.SendTo(connID, env)
	}
}
