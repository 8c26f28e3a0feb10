package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// multipartOverhead covers part headers and form fields
const multipartOverhead = 64 << 10

type ItemHandler struct {
	service     *homework.Service
	logger      logger.Logger
	maxFileSize int64
	maxFiles    int
}

// ItemView is an item plus the status of its solution, if any
type ItemView struct {
	models.FileItem
	SolutionStatus models.SolutionStatus `json:"solutionStatus,omitempty"`
	Problems       int                   `json:"problems"`
}

type renameRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

// Upload ingests multipart files[] with an optional source field
func (h *ItemHandler) Upload(c *gin.Context) {
	limit := h.maxFileSize*int64(h.maxFiles) + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		if bodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "Upload too large",
				Message: fmt.Sprintf("request exceeds %d bytes", limit),
			})
			return
		}
		badRequest(c, "Invalid form data", err)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, "No files provided", nil)
		return
	}
	if len(headers) > h.maxFiles {
		badRequest(c, fmt.Sprintf("At most %d files per upload", h.maxFiles), nil)
		return
	}

	uploads := make([]homework.Upload, 0, len(headers))
	for _, fh := range headers {
		content, err := readPart(fh, h.maxFileSize)
		if err != nil {
			badRequest(c, fmt.Sprintf("Cannot read %s", fh.Filename), err)
			return
		}
		uploads = append(uploads, homework.Upload{Name: fh.Filename, Content: content})
	}

	res, err := h.service.Ingest(c.Request.Context(), uploads, models.FileSource(c.PostForm("source")))
	if err != nil {
		if res != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "rejected": res.Rejected})
			return
		}
		handleError(c, h.logger, "Failed to ingest files", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// readPart reads at most limit+1 bytes so the validator still sees an
// oversized file as too large
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func (h *ItemHandler) List(c *gin.Context) {
	st := h.service.Store()
	items := st.Items()
	views := make([]ItemView, len(items))
	for i, it := range items {
		views[i] = ItemView{FileItem: it}
		if sol, ok := st.Solution(it.URL); ok {
			views[i].SolutionStatus = sol.Status
			views[i].Problems = len(sol.Problems)
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": views, "working": st.Working()})
}

func (h *ItemHandler) Content(c *gin.Context) {
	content, mimeType, err := h.service.Content(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to load content", err)
		return
	}
	c.Data(http.StatusOK, mimeType, content)
}

func (h *ItemHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	it, err := h.service.Rename(c.Param("id"), req.DisplayName)
	if err != nil {
		handleError(c, h.logger, "Failed to rename item", err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *ItemHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Param("id")); err != nil {
		handleError(c, h.logger, "Failed to remove item", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) Clear(c *gin.Context) {
	if err := h.service.ClearAll(); err != nil {
		handleError(c, h.logger, "Failed to clear items", err)
		return
	}
	c.Status(http.StatusNoContent)
}
