package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler handles WebSocket connections for live run event streams.
type Handler struct {
	broker ports.MessageBroker
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(broker ports.MessageBroker, logger *zap.Logger) *Handler {
	return &Handler{
		broker: broker,
		logger: logger,
	}
}

// HandleRunStream upgrades the connection and forwards events for one run.
// Each connection consumes the events stream through its own throwaway
// group, so it observes every event without stealing from orchestrators.
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	group := "ws." + uuid.New().String()
	stream, err := h.broker.SubscribeEvents(ctx, group, "ws")
	if err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}
	defer stream.Close()

	// Surface client disconnects so the forward loop stops.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		delivery, err := stream.Next(ctx)
		if err != nil {
			return
		}
		if delivery == nil {
			continue
		}
		if err := delivery.Ack(ctx); err != nil {
			h.logger.Warn("failed to ack event", zap.Error(err))
		}

		event := delivery.Event
		if event.RunID != runID {
			continue
		}

		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("failed to marshal event", zap.Error(err))
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("failed to write message", zap.Error(err))
			return
		}
	}
}
