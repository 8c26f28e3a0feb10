package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

type SourceHandler struct {
	service *homework.Service
	logger  logger.Logger
}

// SourceView is a source without its credential
type SourceView struct {
	models.AiSource
	HasKey  bool `json:"hasKey"`
	InChain bool `json:"inChain"`
}

func (h *SourceHandler) List(c *gin.Context) {
	chain := make(map[string]bool)
	for _, s := range h.service.Chain() {
		chain[s.ID] = true
	}
	sources := h.service.Sources()
	views := make([]SourceView, len(sources))
	for i, s := range sources {
		views[i] = SourceView{AiSource: s, HasKey: s.APIKey != "", InChain: chain[s.ID]}
	}
	c.JSON(http.StatusOK, gin.H{"sources": views})
}

func (h *SourceHandler) Models(c *gin.Context) {
	list, err := h.service.ListModels(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to list models", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}
