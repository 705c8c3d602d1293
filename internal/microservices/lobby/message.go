package lobby

import (
	"encoding/json"
	"time"
)

// Message protocol definitions

// Every frame on the wire is an Envelope: a type tag plus an opaque payload.
// A frame that does not decode to a known type is rejected without side effects.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types on the player channel
const (
	MsgChat          = "chat"
	MsgSwitchChannel = "switch-channel"
	MsgWatchGames    = "watch-games"
	MsgUnwatchGames  = "unwatch-games"
)

// Inbound message types on the game-host channel
const (
	MsgPostGame   = "post-game"
	MsgKeepAlive  = "keep-alive"
	MsgUpdateGame = "update-game"
	MsgRemoveGame = "remove-game"
)

// Outbound message types
const (
	MsgSystem      = "system"
	MsgError       = "error"
	MsgDisconnect  = "disconnect"
	MsgGamePosted  = "game-posted"
	MsgGameAdded   = "game-added"
	MsgGameUpdated = "game-updated"
	MsgGameRemoved = "game-removed"
	MsgGameListing = "game-listing"
)

// ChatRequest: inbound payload of a "chat" frame
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatBroadcast: outbound payload fanned out to every chatter in the channel
type ChatBroadcast struct {
	From      string    `json:"from"`
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"` // time in UTC format
}

// SwitchChannelRequest: inbound payload of a "switch-channel" frame
type SwitchChannelRequest struct {
	Channel string `json:"channel"`
}

// SystemNotice: outbound payload of a "system" frame (join/leave status)
type SystemNotice struct {
	Text string `json:"text"`
}

// ErrorPayload: outbound payload of an "error" frame
type ErrorPayload struct {
	Message string `json:"message"`
}

// DisconnectPayload: outbound payload telling a connection to go away
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// GameMetadata: the player-visible description of an advertised game
type GameMetadata struct {
	Name        string `json:"name"`
	MapName     string `json:"map_name"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	Passworded  bool   `json:"passworded"`
}

// GameRef: inbound payload carrying just a game id (keep-alive, remove-game)
type GameRef struct {
	GameID string `json:"game_id"`
}

// GameUpdateRequest: inbound payload of an "update-game" frame
type GameUpdateRequest struct {
	GameID   string       `json:"game_id"`
	Metadata GameMetadata `json:"metadata"`
}

// GameDelta: outbound payload of game-added / game-updated / game-removed frames
type GameDelta struct {
	GameID   string        `json:"game_id"`
	Metadata *GameMetadata `json:"metadata,omitempty"` // nil on removal
}

// NewEnvelope marshals the payload and wraps it with the type tag
func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Type: msgType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: msgType, Payload: data}, nil
}

// ErrorEnvelope builds an "error" frame; the payload cannot fail to marshal
func ErrorEnvelope(message string) *Envelope {
	env, _ := NewEnvelope(MsgError, ErrorPayload{Message: message})
	return env
}

// ToJSON: marshal Envelope struct to JSON
func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
