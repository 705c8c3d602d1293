package lobby

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitGetRemove(t *testing.T) {
	reg := NewConnectionRegistry("test")
	conn := NewConn(nil, "alice", "player", "10.0.0.1")

	id := reg.Admit(conn)
	assert.Equal(t, conn.ID, id)

	got, ok := reg.Get(id)
	require.True(t, ok)
	assert.Same(t, conn, got)

	reg.Remove(id)
	_, ok = reg.Get(id)
	assert.False(t, ok)

	// removing again is a no-op
	assert.NotPanics(t, func() { reg.Remove(id) })
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	reg := NewConnectionRegistry("test")
	_, ok := reg.Get("does-not-exist")
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := NewConn(nil, "alice", "player", "10.0.0.1")

	conn.Close()
	assert.True(t, conn.Closed())
	assert.NotPanics(t, func() { conn.Close() })
}

func TestSendAfterCloseIsDroppedSilently(t *testing.T) {
	conn := NewConn(nil, "alice", "player", "10.0.0.1")
	conn.Close()

	assert.NotPanics(t, func() {
		conn.Send(&Envelope{Type: MsgSystem})
	})
}

func TestBroadcastWithPredicate(t *testing.T) {
	reg := NewConnectionRegistry("test")
	alice := NewConn(nil, "alice", "player", "10.0.0.1")
	bob := NewConn(nil, "bob", "moderator", "10.0.0.2")
	reg.Admit(alice)
	reg.Admit(bob)

	reg.Broadcast(func(c *Conn) bool { return c.Role == "moderator" }, &Envelope{Type: "mod-only"})

	requireNoFrame(t, alice)
	assert.Equal(t, "mod-only", recvFrame(t, bob).Type)
}

// iteration must tolerate concurrent admit/remove without returning a
// half-constructed entry or crashing
func TestConcurrentAdmitRemoveBroadcast(t *testing.T) {
	reg := NewConnectionRegistry("test")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := NewConn(nil, fmt.Sprintf("user-%d", n), "player", "10.0.0.1")
			reg.Admit(conn)
			reg.Broadcast(nil, &Envelope{Type: MsgSystem})
			reg.Remove(conn.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Count())
}

func TestCloseAllClearsRegistry(t *testing.T) {
	reg := NewConnectionRegistry("test")
	alice := NewConn(nil, "alice", "player", "10.0.0.1")
	bob := NewConn(nil, "bob", "player", "10.0.0.2")
	reg.Admit(alice)
	reg.Admit(bob)

	reg.CloseAll()

	assert.Equal(t, 0, reg.Count())
	assert.True(t, alice.Closed())
	assert.True(t, bob.Closed())
}
