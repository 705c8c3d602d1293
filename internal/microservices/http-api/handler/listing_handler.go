package handler

import (
	"net/http"

	"lobbyserver/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// ListingHandler serves the polled game-listing endpoint for clients that
// do not hold a realtime connection. Any authenticated user may fetch it.
type ListingHandler struct {
	moderationService service.ModerationService
}

func NewListingHandler(moderationService service.ModerationService) *ListingHandler {
	return &ListingHandler{moderationService: moderationService}
}

func (h *ListingHandler) FetchGames(c *gin.Context) {
	games := h.moderationService.ListGames()
	c.JSON(http.StatusOK, gin.H{"games": games})
}
