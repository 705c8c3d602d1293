package handler

import (
	"net/http"
	"time"

	"lobbyserver/internal/microservices/http-api/dto"
	"lobbyserver/internal/microservices/http-api/models"
	"lobbyserver/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// ModerationHandler exposes the moderator action entrypoints. The routes
// behind it are gated by RequireModerator; the realtime effects (force
// disconnect, game boot) land on already-open connections.
type ModerationHandler struct {
	moderationService service.ModerationService
	defaultMute       time.Duration
}

func NewModerationHandler(moderationService service.ModerationService, defaultMute time.Duration) *ModerationHandler {
	return &ModerationHandler{
		moderationService: moderationService,
		defaultMute:       defaultMute,
	}
}

// moderatorName pulls the acting moderator's username from the auth context
func moderatorName(c *gin.Context) string {
	if v, ok := c.Get("username"); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return "unknown"
}

func (h *ModerationHandler) BanUser(c *gin.Context) {
	var req dto.BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ban, err := h.moderationService.BanUser(
		c.Request.Context(),
		moderatorName(c),
		req.Username,
		req.Address,
		req.Reason,
		time.Duration(req.DurationSeconds)*time.Second,
	)
	if err == service.ErrBanTargetMissing {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ban"})
		return
	}

	c.JSON(http.StatusCreated, ban)
}

func (h *ModerationHandler) LiftBan(c *gin.Context) {
	banID := c.Param("id")
	if err := h.moderationService.LiftBan(c.Request.Context(), moderatorName(c), banID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ban not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ban lifted"})
}

func (h *ModerationHandler) ListBans(c *gin.Context) {
	var q dto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bans, err := h.moderationService.ListBans(q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bans": bans})
}

func (h *ModerationHandler) DisconnectUser(c *gin.Context) {
	var req dto.DisconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "disconnected by moderator"
	}

	found := h.moderationService.DisconnectUser(c.Request.Context(), moderatorName(c), req.Username, reason)
	c.JSON(http.StatusOK, gin.H{"disconnected": found})
}

func (h *ModerationHandler) MuteUser(c *gin.Context) {
	var req dto.MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = h.defaultMute
	}

	if err := h.moderationService.MuteUser(c.Request.Context(), moderatorName(c), req.Username, duration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mute user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user muted", "duration_seconds": int64(duration.Seconds())})
}

func (h *ModerationHandler) UnmuteUser(c *gin.Context) {
	var req dto.UnmuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.moderationService.UnmuteUser(c.Request.Context(), moderatorName(c), req.Username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unmute user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user unmuted"})
}

// BootGame removes a game advertisement and disconnects its host. A missing
// game id is still a 200: the boot is a no-op, not an error.
func (h *ModerationHandler) BootGame(c *gin.Context) {
	gameID := c.Param("id")
	h.moderationService.BootGame(c.Request.Context(), moderatorName(c), gameID)
	c.JSON(http.StatusOK, gin.H{"message": "game booted"})
}

func (h *ModerationHandler) AuditLog(c *gin.Context) {
	var q dto.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var entries []models.AuditEntry
	var err error
	if q.Actor != "" {
		entries, err = h.moderationService.AuditLogByActor(c.Request.Context(), q.Actor, q.Limit)
	} else {
		entries, err = h.moderationService.AuditLog(c.Request.Context(), q.Limit, q.Offset)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
