package lobby

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// end-to-end tests through New: raw frames in via Dispatch, frames out via
// the connection send channels

func newTestLobby(t *testing.T, bans *fakeBanStore) *Lobby {
	t.Helper()
	return New(testConfig(), bans, newFakeMuteStore(), relaxedAudit())
}

func admitPlayer(l *Lobby, username string) *Conn {
	c := NewConn(nil, username, "player", "10.0.0.1")
	l.PlayerBus().Registry().Admit(c)
	l.Chatters().Join(c, username)
	return c
}

func admitGameHost(l *Lobby, username string) *Conn {
	c := NewConn(nil, username, "host", "192.168.1.50")
	l.HostBus().Registry().Admit(c)
	return c
}

func frame(t *testing.T, msgType string, payload any) []byte {
	t.Helper()
	env, err := NewEnvelope(msgType, payload)
	require.NoError(t, err)
	data, err := env.ToJSON()
	require.NoError(t, err)
	return data
}

func TestPostGameFrameReachesWatcher(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	host := admitGameHost(l, "hostess")
	watcher := admitPlayer(l, "alice")

	l.PlayerBus().Dispatch(watcher, frame(t, MsgWatchGames, nil))
	recvFrameOfType(t, watcher, MsgGameListing)

	l.HostBus().Dispatch(host, frame(t, MsgPostGame, GameMetadata{Name: "Axis vs Allies"}))

	// host gets the assigned id back
	posted := recvFrameOfType(t, host, MsgGamePosted)
	var ref GameRef
	require.NoError(t, json.Unmarshal(posted.Payload, &ref))
	assert.NotEmpty(t, ref.GameID)

	// watcher sees the delta
	added := recvFrameOfType(t, watcher, MsgGameAdded)
	var delta GameDelta
	require.NoError(t, json.Unmarshal(added.Payload, &delta))
	assert.Equal(t, ref.GameID, delta.GameID)
}

func TestPostGameWithoutNameIsRejected(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	host := admitGameHost(l, "hostess")

	l.HostBus().Dispatch(host, frame(t, MsgPostGame, GameMetadata{}))

	env := recvFrameOfType(t, host, MsgError)
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &perr))
	assert.Contains(t, perr.Message, "game name is required")
	assert.Empty(t, l.ListGames())
}

func TestRemoveGameRequiresOwnership(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	owner := admitGameHost(l, "owner")
	intruder := admitGameHost(l, "intruder")

	l.HostBus().Dispatch(owner, frame(t, MsgPostGame, GameMetadata{Name: "mine"}))
	posted := recvFrameOfType(t, owner, MsgGamePosted)
	var ref GameRef
	require.NoError(t, json.Unmarshal(posted.Payload, &ref))

	l.HostBus().Dispatch(intruder, frame(t, MsgRemoveGame, ref))

	recvFrameOfType(t, intruder, MsgError)
	require.Len(t, l.ListGames(), 1)
}

func TestChatFrameFansOutAcrossConnections(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	alice := admitPlayer(l, "alice")
	bob := admitPlayer(l, "bob")

	l.PlayerBus().Dispatch(alice, frame(t, MsgChat, ChatRequest{Text: "hello lobby"}))

	for _, c := range []*Conn{alice, bob} {
		env := recvFrameOfType(t, c, MsgChat)
		var msg ChatBroadcast
		require.NoError(t, json.Unmarshal(env.Payload, &msg))
		assert.Equal(t, "alice", msg.From)
		assert.Equal(t, "hello lobby", msg.Text)
	}
}

func TestSwitchChannelFrameIsolatesChat(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	alice := admitPlayer(l, "alice")
	bob := admitPlayer(l, "bob")

	l.PlayerBus().Dispatch(bob, frame(t, MsgSwitchChannel, SwitchChannelRequest{Channel: "side-room"}))
	drainFrames(alice)
	drainFrames(bob)

	l.PlayerBus().Dispatch(alice, frame(t, MsgChat, ChatRequest{Text: "lobby only"}))
	recvFrameOfType(t, alice, MsgChat)
	requireNoFrame(t, bob)
}

func TestSwitchChannelRequiresAChannelName(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	alice := admitPlayer(l, "alice")

	l.PlayerBus().Dispatch(alice, frame(t, MsgSwitchChannel, SwitchChannelRequest{}))

	env := recvFrameOfType(t, alice, MsgError)
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &perr))
	assert.Contains(t, perr.Message, "channel is required")
}

func TestDisconnectUserReachesBothChannels(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	player := admitPlayer(l, "dual")
	host := admitGameHost(l, "dual")

	found := l.DisconnectUser("dual", "banned")

	assert.True(t, found)
	recvFrameOfType(t, player, MsgDisconnect)
	recvFrameOfType(t, host, MsgDisconnect)
	assert.True(t, player.Closed())
	assert.True(t, host.Closed())
}

func TestDisconnectUnknownUserReturnsFalse(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	assert.False(t, l.DisconnectUser("nobody", "reason"))
}

func TestHostCleanupRemovesItsGames(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	host := admitGameHost(l, "hostess")

	l.HostBus().Dispatch(host, frame(t, MsgPostGame, GameMetadata{Name: "g"}))
	recvFrameOfType(t, host, MsgGamePosted)
	require.Len(t, l.ListGames(), 1)

	l.hostClosed(host)

	assert.Empty(t, l.ListGames())
	_, found := l.HostBus().Registry().Get(host.ID)
	assert.False(t, found)
}

func TestPlayerCleanupLeavesChatAndWatchers(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	alice := admitPlayer(l, "alice")
	bob := admitPlayer(l, "bob")
	l.PlayerBus().Dispatch(alice, frame(t, MsgWatchGames, nil))
	recvFrameOfType(t, alice, MsgGameListing)

	l.playerClosed(alice)

	// bob's chat no longer reaches alice
	l.PlayerBus().Dispatch(bob, frame(t, MsgChat, ChatRequest{Text: "anyone?"}))
	recvFrameOfType(t, bob, MsgChat)
	_, found := l.Chatters().Get(alice.ID)
	assert.False(t, found)
}

func TestDuplicateHandlerRegistrationPanicsAtStartup(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())
	assert.Panics(t, func() {
		l.PlayerBus().MustOn(MsgChat, func(c *Conn, payload json.RawMessage) (*Envelope, error) {
			return nil, nil
		})
	})
}

func TestConcurrentHostsPostingGames(t *testing.T) {
	l := newTestLobby(t, newFakeBanStore())

	frames := make([][]byte, 10)
	for i := range frames {
		frames[i] = frame(t, MsgPostGame, GameMetadata{Name: fmt.Sprintf("game-%d", i)})
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			host := admitGameHost(l, fmt.Sprintf("host-%d", n))
			l.HostBus().Dispatch(host, frames[n])
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, l.ListGames(), 10)
}
