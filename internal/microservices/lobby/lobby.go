// Package lobby is the realtime messaging core: a typed publish/subscribe
// bus multiplexed over persistent player and game-host connections, a live
// game-listing registry with keep-alive expiry, and a ban gate enforced
// both at admission and per inbound frame.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lobbyserver/internal/config"
	"lobbyserver/internal/microservices/http-api/repository"
)

// Channel names
const (
	PlayerChannel = "player"
	HostChannel   = "game-host"
)

// Lobby wires the core components together and exposes the moderator
// entrypoints the CRUD controllers call into.
type Lobby struct {
	playerBus *MessageBus
	hostBus   *MessageBus
	gate      *BanGate
	chatters  *ChatterRegistry
	games     *GameListingRegistry
	logger    *slog.Logger
}

// New builds the lobby core. Handler registration happens here, once; a
// duplicate message-type binding panics at startup rather than surfacing
// at dispatch time.
func New(cfg *config.Config, banStore BanStore, mutes MuteStore, audit repository.AuditRepository) *Lobby {
	playerBus := NewMessageBus(PlayerChannel, NewConnectionRegistry(PlayerChannel))
	hostBus := NewMessageBus(HostChannel, NewConnectionRegistry(HostChannel))

	l := &Lobby{
		playerBus: playerBus,
		hostBus:   hostBus,
		gate:      NewBanGate(banStore),
		chatters:  NewChatterRegistry(playerBus, mutes, audit),
		games:     NewGameListingRegistry(playerBus, hostBus, cfg.GameHeartbeatTimeout, cfg.GameSweepInterval),
		logger:    slog.Default(),
	}

	// player channel
	playerBus.MustOn(MsgChat, l.handleChat)
	playerBus.MustOn(MsgSwitchChannel, l.handleSwitchChannel)
	playerBus.MustOn(MsgWatchGames, l.handleWatchGames)
	playerBus.MustOn(MsgUnwatchGames, l.handleUnwatchGames)

	// game-host channel
	hostBus.MustOn(MsgPostGame, l.handlePostGame)
	hostBus.MustOn(MsgKeepAlive, l.handleKeepAlive)
	hostBus.MustOn(MsgUpdateGame, l.handleUpdateGame)
	hostBus.MustOn(MsgRemoveGame, l.handleRemoveGame)

	return l
}

// Start launches the game-listing expiry sweep
func (l *Lobby) Start(ctx context.Context) {
	l.games.Start(ctx)
}

// Shutdown force-closes every live connection on both channels
func (l *Lobby) Shutdown() {
	l.playerBus.Registry().CloseAll()
	l.hostBus.Registry().CloseAll()
}

// Gate exposes the ban gate for the admission handlers
func (l *Lobby) Gate() *BanGate { return l.gate }

// PlayerBus exposes the player-channel bus
func (l *Lobby) PlayerBus() *MessageBus { return l.playerBus }

// HostBus exposes the game-host-channel bus
func (l *Lobby) HostBus() *MessageBus { return l.hostBus }

// Chatters exposes the chatter registry
func (l *Lobby) Chatters() *ChatterRegistry { return l.chatters }

// Games exposes the game-listing registry
func (l *Lobby) Games() *GameListingRegistry { return l.games }

// --- player channel handlers ---

func (l *Lobby) handleChat(c *Conn, payload json.RawMessage) (*Envelope, error) {
	var req ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("malformed chat payload: %w", err)
	}
	if req.Text == "" {
		return nil, errors.New("empty chat message")
	}
	if err := l.chatters.SendChatMessage(context.Background(), c.ID, req.Text); err != nil {
		return nil, err
	}
	return nil, nil
}

func (l *Lobby) handleSwitchChannel(c *Conn, payload json.RawMessage) (*Envelope, error) {
	var req SwitchChannelRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("malformed switch-channel payload: %w", err)
	}
	if req.Channel == "" {
		return nil, errors.New("channel is required")
	}
	return nil, l.chatters.SwitchChannel(c.ID, req.Channel)
}

func (l *Lobby) handleWatchGames(c *Conn, payload json.RawMessage) (*Envelope, error) {
	l.games.Watch(c.ID)
	return nil, nil
}

func (l *Lobby) handleUnwatchGames(c *Conn, payload json.RawMessage) (*Envelope, error) {
	l.games.Unwatch(c.ID)
	return nil, nil
}

// --- game-host channel handlers ---

func (l *Lobby) handlePostGame(c *Conn, payload json.RawMessage) (*Envelope, error) {
	var meta GameMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("malformed game metadata: %w", err)
	}
	if meta.Name == "" {
		return nil, errors.New("game name is required")
	}
	gameID := l.games.PostGame(c, meta)
	return NewEnvelope(MsgGamePosted, GameRef{GameID: gameID})
}

func (l *Lobby) handleKeepAlive(c *Conn, payload json.RawMessage) (*Envelope, error) {
	var ref GameRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return nil, fmt.Errorf("malformed keep-alive payload: %w", err)
	}
	l.games.KeepAlive(ref.GameID)
	return nil, nil
}

func (l *Lobby) handleUpdateGame(c *Conn, payload json.RawMessage) (*Envelope, error) {
	var req GameUpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("malformed update payload: %w", err)
	}
	if !l.games.OwnedBy(req.GameID, c.ID) {
		return nil, errors.New("game not owned by this connection")
	}
	l.games.UpdateGame(req.GameID, req.Metadata)
	return nil, nil
}

func (l *Lobby) handleRemoveGame(c *Conn, payload json.RawMessage) (*Envelope, error) {
	var ref GameRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return nil, fmt.Errorf("malformed remove payload: %w", err)
	}
	if !l.games.OwnedBy(ref.GameID, c.ID) {
		return nil, errors.New("game not owned by this connection")
	}
	l.games.RemoveGame(ref.GameID)
	return nil, nil
}

// --- moderator entrypoints (invoked by the CRUD controllers) ---

// DisconnectUser force-closes every live session of the identity on both
// channels. Takes effect within the core's normal dispatch latency.
// Returns true when at least one session was found.
func (l *Lobby) DisconnectUser(username, reason string) bool {
	found := l.chatters.DisconnectUser(username, reason)

	// the identity may also be hosting games on the other channel
	for _, c := range l.hostBus.Registry().Snapshot() {
		if c.Username != username {
			continue
		}
		if env, err := NewEnvelope(MsgDisconnect, DisconnectPayload{Reason: reason}); err == nil {
			c.Send(env)
		}
		c.Close()
		found = true
	}
	return found
}

// BootGame removes the advertisement and disconnects its host
func (l *Lobby) BootGame(gameID string) {
	l.games.BootGame(gameID)
}

// MuteUser silences the identity for the duration
func (l *Lobby) MuteUser(ctx context.Context, username string, duration time.Duration) error {
	return l.chatters.Mute(ctx, username, duration)
}

// UnmuteUser lifts a mute ahead of its expiry
func (l *Lobby) UnmuteUser(ctx context.Context, username string) error {
	return l.chatters.Unmute(ctx, username)
}

// ListGames returns a snapshot of the current game listing
func (l *Lobby) ListGames() []GameAdvertisement {
	return l.games.ListGames()
}

// --- per-channel disconnect cleanup, used by the admission handlers ---

func (l *Lobby) playerClosed(c *Conn) {
	l.chatters.Leave(c.ID)
	l.games.Unwatch(c.ID)
	l.playerBus.Registry().Remove(c.ID)
}

func (l *Lobby) hostClosed(c *Conn) {
	l.games.HostDisconnected(c.ID)
	l.hostBus.Registry().Remove(c.ID)
}
