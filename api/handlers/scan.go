package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

type ScanHandler struct {
	service *homework.Service
	logger  logger.Logger
}

// Start launches a background scan
func (h *ScanHandler) Start(c *gin.Context) {
	if err := h.service.StartScan(); err != nil {
		handleError(c, h.logger, "Cannot start scan", err)
		return
	}
	c.JSON(http.StatusAccepted, h.service.ScanStatus())
}

func (h *ScanHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.ScanStatus())
}

func (h *ScanHandler) Cancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.service.CancelScan()})
}
