package handler

import (
	"advisor-app/session-service/internal/models"
	"advisor-app/session-service/internal/services"
	"advisor-app/session-service/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RequestHandler struct {
	queue       *services.QueueService
	coordinator *services.Coordinator
}

func NewRequestHandler(queue *services.QueueService, coordinator *services.Coordinator) *RequestHandler {
	return &RequestHandler{queue: queue, coordinator: coordinator}
}

type createRequestInput struct {
	AdvisorID string             `json:"advisor_id" validate:"required"`
	Kind      models.SessionKind `json:"kind" validate:"required,oneof=chat video"`
	Payment   models.PaymentRef  `json:"payment"`
}

// CreateRequest files a new session request from the authenticated user.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var input createRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := utils.GetValidator().Struct(input); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": utils.ParseErrors(err)})
		return
	}

	userID, _ := actor(c)
	req := &models.SessionRequest{
		UserID:    userID,
		AdvisorID: input.AdvisorID,
		Kind:      input.Kind,
		Payment:   input.Payment,
	}
	if err := h.queue.Create(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListPending returns the advisor's own queue, oldest first.
func (h *RequestHandler) ListPending(c *gin.Context) {
	advisorID, _ := actor(c)
	requests, err := h.queue.ListPending(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// Accept admits a pending request addressed to the acting advisor.
func (h *RequestHandler) Accept(c *gin.Context) {
	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrInvalidID)
		return
	}

	advisorID, _ := actor(c)
	session, req, err := h.coordinator.AcceptRequest(c.Request.Context(), requestID, advisorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "request": req})
}

// Close ends or abandons a request. Closing an already closed request is
// success, so clients may call this blindly on any navigation path.
func (h *RequestHandler) Close(c *gin.Context) {
	actorID, role := actor(c)
	if err := h.coordinator.EndSession(c.Request.Context(), c.Param("id"), actorID, role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}
