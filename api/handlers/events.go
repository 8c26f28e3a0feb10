package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

const eventBuffer = 256

type EventHandler struct {
	service *homework.Service
	logger  logger.Logger
	// Heartbeat is the keep-alive interval, 15s when zero
	Heartbeat time.Duration
}

// Stream relays store events as server-sent events until the client leaves
func (h *EventHandler) Stream(c *gin.Context) {
	events, cancel := h.service.Store().Subscribe(eventBuffer)
	defer cancel()

	every := h.Heartbeat
	if every <= 0 {
		every = 15 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"working": h.service.Store().Working()})
			return true
		}
	})
}
