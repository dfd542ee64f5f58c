package handler

import (
	"advisor-app/session-service/internal/repository"
	"advisor-app/session-service/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AdvisorHandler struct {
	presence *services.PresenceService
	tokens   repository.DeviceTokenRepository
}

func NewAdvisorHandler(presence *services.PresenceService, tokens repository.DeviceTokenRepository) *AdvisorHandler {
	return &AdvisorHandler{presence: presence, tokens: tokens}
}

func (h *AdvisorHandler) GetPresence(c *gin.Context) {
	advisor, err := h.presence.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                      advisor.ID,
		"busy":                    advisor.Busy,
		"busy_since":              advisor.BusySince,
		"total_sessions_attended": advisor.TotalSessionsAttended,
	})
}

type availabilityInput struct {
	Busy bool `json:"busy"`
}

// SetAvailability is the advisor's manual toggle; advisors can only toggle
// themselves.
func (h *AdvisorHandler) SetAvailability(c *gin.Context) {
	var input availabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	advisorID, _ := actor(c)
	advisor, err := h.presence.SetAvailability(c.Request.Context(), advisorID, input.Busy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, advisor)
}

type deviceTokenInput struct {
	Token string `json:"token" binding:"required"`
}

// RegisterDevice stores the caller's FCM device token for push fan-out.
func (h *AdvisorHandler) RegisterDevice(c *gin.Context) {
	var input deviceTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	userID, _ := actor(c)
	if err := h.tokens.Save(c.Request.Context(), userID, input.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}
