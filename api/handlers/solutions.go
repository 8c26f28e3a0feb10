package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

type SolutionHandler struct {
	service *homework.Service
	logger  logger.Logger
}

func (h *SolutionHandler) Get(c *gin.Context) {
	sol, err := h.service.Solution(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to get solution", err)
		return
	}
	c.JSON(http.StatusOK, sol)
}

// UpdateProblem replaces answer, explanation and steps of one problem
func (h *SolutionHandler) UpdateProblem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "Problem index must be a number", err)
		return
	}
	var patch models.ProblemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if patch.Steps == nil {
		patch.Steps = []models.ExplanationStep{}
	}
	sol, err := h.service.UpdateProblem(c.Param("id"), index, patch)
	if err != nil {
		handleError(c, h.logger, "Failed to update problem", err)
		return
	}
	c.JSON(http.StatusOK, sol)
}

// Export downloads every solved page as markdown or html
func (h *SolutionHandler) Export(c *gin.Context) {
	out, conv, err := h.service.Export(c.DefaultQuery("format", "markdown"))
	if err != nil {
		handleError(c, h.logger, "Failed to export solutions", err)
		return
	}
	filename := fmt.Sprintf("skid-homework-%s%s", time.Now().Format("20060102-150405"), conv.Extension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, conv.ContentType(), out)
}
