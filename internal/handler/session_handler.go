package handler

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/services"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// TokenMinter mints video join tokens for session participants.
type TokenMinter interface {
	JoinToken(roomID, identity string) (string, error)
}

type SessionHandler struct {
	registry    *services.RegistryService
	coordinator *services.Coordinator
	tokens      TokenMinter
}

func NewSessionHandler(registry *services.RegistryService, coordinator *services.Coordinator, tokens TokenMinter) *SessionHandler {
	return &SessionHandler{registry: registry, coordinator: coordinator, tokens: tokens}
}

func (h *SessionHandler) Get(c *gin.Context) {
	actorID, role := actor(c)
	session, err := h.registry.Get(c.Request.Context(), c.Param("id"), actorID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// End tears the session down. Safe to call twice or concurrently from both
// participants; an already closed session still reports success.
func (h *SessionHandler) End(c *gin.Context) {
	actorID, role := actor(c)
	if err := h.coordinator.EndSession(c.Request.Context(), c.Param("id"), actorID, role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

type sendMessageInput struct {
	Content        string          `json:"content"`
	File           *models.FileRef `json:"file"`
	IsAudioMessage bool            `json:"is_audio_message"`
	Transcription  string          `json:"transcription"`
}

func (h *SessionHandler) SendMessage(c *gin.Context) {
	var input sendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	actorID, _ := actor(c)
	msg, err := h.registry.AppendMessage(c.Request.Context(), c.Param("id"), actorID, &models.MessageInput{
		Content:        input.Content,
		File:           input.File,
		IsAudioMessage: input.IsAudioMessage,
		Transcription:  input.Transcription,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *SessionHandler) GetMessages(c *gin.Context) {
	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)

	actorID, role := actor(c)
	messages, err := h.registry.Messages(c.Request.Context(), c.Param("id"), actorID, role, afterSeq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// JoinToken mints a video access token for a session participant.
func (h *SessionHandler) JoinToken(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "video is not configured"})
		return
	}

	actorID, role := actor(c)
	session, err := h.registry.Get(c.Request.Context(), c.Param("id"), actorID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	if session.Status != models.SessionActive {
		respondError(c, models.ErrSessionClosed)
		return
	}

	token, err := h.tokens.JoinToken(session.ID, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "room_id": session.ID})
}

// ListSessions backs the admin oversight console.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.registry.ListByStatus(c.Request.Context(), models.SessionStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}
