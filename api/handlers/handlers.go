package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/internal/scan"
	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/converters"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

type Handlers struct {
	Items     *ItemHandler
	Scan      *ScanHandler
	Solutions *SolutionHandler
	Sources   *SourceHandler
	Events    *EventHandler
}

const (
	DefaultMaxUploadSize  = 50 << 20
	DefaultMaxUploadFiles = 20
)

// Option tunes the handlers
type Option func(*Handlers)

// WithUploadLimits bounds one upload request to maxFiles parts of at most
// maxFileSize bytes each
func WithUploadLimits(maxFileSize int64, maxFiles int) Option {
	return func(h *Handlers) {
		if maxFileSize > 0 {
			h.Items.maxFileSize = maxFileSize
		}
		if maxFiles > 0 {
			h.Items.maxFiles = maxFiles
		}
	}
}

func NewHandlers(service *homework.Service, log logger.Logger, opts ...Option) *Handlers {
	log = log.Named("api")
	h := &Handlers{
		Items: &ItemHandler{
			service:     service,
			logger:      log,
			maxFileSize: DefaultMaxUploadSize,
			maxFiles:    DefaultMaxUploadFiles,
		},
		Scan:      &ScanHandler{service: service, logger: log},
		Solutions: &SolutionHandler{service: service, logger: log},
		Sources:   &SourceHandler{service: service, logger: log},
		Events:    &EventHandler{service: service, logger: log},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var modelErr *scan.ModelNotConfiguredError
	var typeErr *scan.UnsupportedTypeError
	switch {
	case errors.Is(err, homework.ErrItemNotFound),
		errors.Is(err, homework.ErrSolutionNotFound),
		errors.Is(err, homework.ErrProblemNotFound),
		errors.Is(err, homework.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, scan.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, scan.ErrNothingToScan),
		errors.Is(err, scan.ErrNoSource),
		errors.As(err, &modelErr),
		errors.As(err, &typeErr),
		errors.Is(err, homework.ErrInvalidName),
		errors.Is(err, homework.ErrInvalidSource),
		errors.Is(err, homework.ErrNothingToIngest),
		errors.Is(err, homework.ErrAllUploadsRejected),
		errors.Is(err, converters.ErrNothingToExport):
		return http.StatusBadRequest
	case errors.Is(err, homework.ErrModelsUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, homework.ErrServiceClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError logs and writes err with the status mapped from it
func handleError(c *gin.Context, log logger.Logger, message string, err error) {
	status := statusFor(err)
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}

func badRequest(c *gin.Context, message string, err error) {
	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(http.StatusBadRequest, response)
}
