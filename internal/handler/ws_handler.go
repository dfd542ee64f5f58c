package handler

import (
	"advisor-app/session-service/internal/services"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS is enforced by the router
}

// WSHandler streams live updates to connected clients, replacing the
// polling a client would otherwise do against the REST surface. Streams are
// read-only watches: dropping a connection never mutates state.
type WSHandler struct {
	registry *services.RegistryService
	queue    *services.QueueService
	broker   services.Broker
}

func NewWSHandler(registry *services.RegistryService, queue *services.QueueService, broker services.Broker) *WSHandler {
	return &WSHandler{registry: registry, queue: queue, broker: broker}
}

// StreamSession replays message history from after_seq (0 replays from the
// beginning) and then streams live session events. Reconnecting and
// resubscribing is always safe; events carry seq so clients dedupe.
func (h *WSHandler) StreamSession(c *gin.Context) {
	sessionID := c.Param("id")
	actorID, role := actor(c)
	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)

	// Authorization check before the upgrade.
	if _, err := h.registry.Get(c.Request.Context(), sessionID, actorID, role); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] Upgrade failed:", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before replay so no event falls between history and live.
	events, unsubscribe := h.broker.Subscribe(ctx, services.SessionTopic(sessionID))
	defer unsubscribe()

	history, err := h.registry.Messages(ctx, sessionID, actorID, role, afterSeq)
	if err != nil {
		log.Println("[WS] History replay failed:", err)
		return
	}
	for i := range history {
		if writeEvent(conn, services.Event{Type: services.EventMessageAppended, Payload: history[i]}) != nil {
			return
		}
	}

	go readUntilClosed(conn, cancel)
	forward(ctx, conn, events)
}

// StreamInbox pushes the acting advisor's live feed: new and accepted
// requests plus presence changes.
func (h *WSHandler) StreamInbox(c *gin.Context) {
	advisorID, _ := actor(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] Upgrade failed:", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe := h.broker.Subscribe(ctx, services.AdvisorTopic(advisorID))
	defer unsubscribe()

	pending, err := h.queue.ListPending(ctx, advisorID)
	if err != nil {
		log.Println("[WS] Pending replay failed:", err)
		return
	}
	for i := range pending {
		if writeEvent(conn, services.Event{Type: services.EventRequestCreated, Payload: pending[i]}) != nil {
			return
		}
	}

	go readUntilClosed(conn, cancel)
	forward(ctx, conn, events)
}

func forward(ctx context.Context, conn *websocket.Conn, events <-chan []byte) {
	for {
		select {
		case payload, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event services.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readUntilClosed drains client frames so close frames are processed, then
// cancels the stream.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
