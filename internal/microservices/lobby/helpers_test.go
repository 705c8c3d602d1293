package lobby

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lobbyserver/internal/config"
	"lobbyserver/internal/microservices/http-api/models"
)

// test doubles and frame helpers shared by the lobby tests

func testConfig() *config.Config {
	return &config.Config{
		GameHeartbeatTimeout: 2 * time.Minute,
		GameSweepInterval:    20 * time.Second,
	}
}

// recvFrame waits for the next outbound frame queued on the connection
func recvFrame(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case data, ok := <-c.SendChannel:
		require.True(t, ok, "send channel closed while waiting for a frame")
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
	}
	return Envelope{}
}

// recvFrameOfType drains frames until one with the wanted type arrives
func recvFrameOfType(t *testing.T, c *Conn, msgType string) Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := recvFrame(t, c)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("no frame of type %q received", msgType)
	return Envelope{}
}

// drainFrames empties whatever is currently queued on the connection
func drainFrames(c *Conn) {
	for {
		select {
		case <-c.SendChannel:
		default:
			return
		}
	}
}

// requireNoFrame asserts that nothing is queued on the connection
func requireNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data, ok := <-c.SendChannel:
		if ok {
			t.Fatalf("unexpected outbound frame: %s", data)
		}
	default:
	}
}

// fakeBanStore is an in-memory BanStore
type fakeBanStore struct {
	mu             sync.Mutex
	bannedNames    map[string]bool
	bannedAddrs    map[string]bool
	failWithErr    error
	lookupsPerform int
}

func newFakeBanStore() *fakeBanStore {
	return &fakeBanStore{
		bannedNames: make(map[string]bool),
		bannedAddrs: make(map[string]bool),
	}
}

func (s *fakeBanStore) ActiveBanExists(username, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupsPerform++
	if s.failWithErr != nil {
		return false, s.failWithErr
	}
	return s.bannedNames[username] || s.bannedAddrs[address], nil
}

func (s *fakeBanStore) banName(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bannedNames[username] = true
}

// fakeMuteStore is an in-memory MuteStore with real deadlines
type fakeMuteStore struct {
	mu    sync.Mutex
	until map[string]time.Time
	err   error
}

func newFakeMuteStore() *fakeMuteStore {
	return &fakeMuteStore{until: make(map[string]time.Time)}
}

func (s *fakeMuteStore) Mute(ctx context.Context, username string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.until[username] = time.Now().Add(duration)
	return nil
}

func (s *fakeMuteStore) Unmute(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.until, username)
	return nil
}

func (s *fakeMuteStore) IsMuted(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	deadline, ok := s.until[username]
	return ok && time.Now().Before(deadline), nil
}

// MockAuditRepository mocks the AuditRepository interface
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

func (m *MockAuditRepository) ListByActor(ctx context.Context, actor string, limit int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, actor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

// relaxedAudit returns a mock that accepts any append; chat tests that do
// not care about auditing use it
func relaxedAudit() *MockAuditRepository {
	audit := new(MockAuditRepository)
	audit.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()
	return audit
}
