package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lobbyserver/internal/microservices/http-api/dto"
	"lobbyserver/internal/microservices/http-api/models"
	"lobbyserver/internal/microservices/http-api/service"
	"lobbyserver/internal/microservices/lobby"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockModerationService mocks the ModerationService interface
type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) BanUser(ctx context.Context, moderator, username, address, reason string, duration time.Duration) (*models.Ban, error) {
	args := m.Called(ctx, moderator, username, address, reason, duration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ban), args.Error(1)
}

func (m *MockModerationService) LiftBan(ctx context.Context, moderator, banID string) error {
	args := m.Called(ctx, moderator, banID)
	return args.Error(0)
}

func (m *MockModerationService) ListBans(limit, offset int) ([]models.Ban, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ban), args.Error(1)
}

func (m *MockModerationService) DisconnectUser(ctx context.Context, moderator, username, reason string) bool {
	args := m.Called(ctx, moderator, username, reason)
	return args.Bool(0)
}

func (m *MockModerationService) BootGame(ctx context.Context, moderator, gameID string) {
	m.Called(ctx, moderator, gameID)
}

func (m *MockModerationService) MuteUser(ctx context.Context, moderator, username string, duration time.Duration) error {
	args := m.Called(ctx, moderator, username, duration)
	return args.Error(0)
}

func (m *MockModerationService) UnmuteUser(ctx context.Context, moderator, username string) error {
	args := m.Called(ctx, moderator, username)
	return args.Error(0)
}

func (m *MockModerationService) ListGames() []lobby.GameAdvertisement {
	args := m.Called()
	return args.Get(0).([]lobby.GameAdvertisement)
}

func (m *MockModerationService) AuditLog(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

func (m *MockModerationService) AuditLogByActor(ctx context.Context, actor string, limit int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, actor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

// moderatorRouter injects the acting moderator identity the way the auth
// middleware does
func moderatorRouter(moderator string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("username", moderator)
		c.Set("role", models.RoleModerator)
		c.Next()
	})
	return r
}

func TestBanUser_Created(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.POST("/ban", handler.BanUser)

	mockSvc.On("BanUser", mock.Anything, "mod", "troll", "", "flooding", time.Hour).
		Return(&models.Ban{ID: "ban-1", Username: "troll"}, nil)

	body, _ := json.Marshal(dto.BanRequest{
		Username:        "troll",
		Reason:          "flooding",
		DurationSeconds: 3600,
	})
	req, _ := http.NewRequest("POST", "/ban", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var ban models.Ban
	json.Unmarshal(w.Body.Bytes(), &ban)
	assert.Equal(t, "ban-1", ban.ID)

	mockSvc.AssertExpectations(t)
}

func TestBanUser_MissingTarget(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.POST("/ban", handler.BanUser)

	mockSvc.On("BanUser", mock.Anything, "mod", "", "", "spam", time.Duration(0)).
		Return(nil, service.ErrBanTargetMissing)

	body, _ := json.Marshal(dto.BanRequest{Reason: "spam"})
	req, _ := http.NewRequest("POST", "/ban", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBootGame_UnknownIDStillOK(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.POST("/games/:id/boot", handler.BootGame)

	mockSvc.On("BootGame", mock.Anything, "mod", "no-such-game").Return()

	req, _ := http.NewRequest("POST", "/games/no-such-game/boot", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertCalled(t, "BootGame", mock.Anything, "mod", "no-such-game")
}

func TestMuteUser_DefaultDuration(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.POST("/mute", handler.MuteUser)

	// no duration in the request falls back to the configured default
	mockSvc.On("MuteUser", mock.Anything, "mod", "chatterbox", 10*time.Minute).Return(nil)

	body, _ := json.Marshal(dto.MuteRequest{Username: "chatterbox"})
	req, _ := http.NewRequest("POST", "/mute", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestUnmuteUser(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.POST("/unmute", handler.UnmuteUser)

	mockSvc.On("UnmuteUser", mock.Anything, "mod", "chatterbox").Return(nil)

	body, _ := json.Marshal(dto.UnmuteRequest{Username: "chatterbox"})
	req, _ := http.NewRequest("POST", "/unmute", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestAuditLog_ActorFilter(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.GET("/audit", handler.AuditLog)

	mockSvc.On("AuditLogByActor", mock.Anything, "troll", 50).
		Return([]models.AuditEntry{{Kind: models.AuditChatMessage, Actor: "troll"}}, nil)

	req, _ := http.NewRequest("GET", "/audit?actor=troll", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertNotCalled(t, "AuditLog", mock.Anything, mock.Anything, mock.Anything)
	mockSvc.AssertExpectations(t)
}

func TestDisconnectUser_ReportsNotFound(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.POST("/disconnect", handler.DisconnectUser)

	mockSvc.On("DisconnectUser", mock.Anything, "mod", "ghost", "disconnected by moderator").Return(false)

	body, _ := json.Marshal(dto.DisconnectRequest{Username: "ghost"})
	req, _ := http.NewRequest("POST", "/disconnect", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]bool
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.False(t, response["disconnected"])
}

func TestListBans_DefaultPagination(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewModerationHandler(mockSvc, 10*time.Minute)
	router := moderatorRouter("mod")
	router.GET("/ban", handler.ListBans)

	mockSvc.On("ListBans", 50, 0).Return([]models.Ban{{Username: "troll"}}, nil)

	req, _ := http.NewRequest("GET", "/ban", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestFetchGames(t *testing.T) {
	mockSvc := new(MockModerationService)
	handler := NewListingHandler(mockSvc)
	router := moderatorRouter("alice")
	router.GET("/lobby/games", handler.FetchGames)

	mockSvc.On("ListGames").Return([]lobby.GameAdvertisement{
		{ID: "game-1", Metadata: lobby.GameMetadata{Name: "Axis vs Allies"}},
	})

	req, _ := http.NewRequest("GET", "/lobby/games", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Games []lobby.GameAdvertisement `json:"games"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response.Games, 1)
	assert.Equal(t, "Axis vs Allies", response.Games[0].Metadata.Name)
}
