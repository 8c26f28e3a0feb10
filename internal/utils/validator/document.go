// Package validator checks uploaded homework pages before ingestion.
package validator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yangshenhuai/skid-homework/internal/agent"
	"github.com/yangshenhuai/skid-homework/internal/agent/document/pdf"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

const (
	CodeEmptyFile        = "EMPTY_FILE"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidFileType  = "INVALID_FILE_TYPE"
	CodePDFNotSupported  = "PDF_NOT_SUPPORTED"
	CodeInvalidPDF       = "INVALID_PDF"
	CodeTooManyPages     = "PDF_TOO_MANY_PAGES"
	CodeInvalidImage     = "INVALID_IMAGE"
	CodeInvalidDimension = "INVALID_DIMENSION"
)

// PDFInspector reads page counts out of PDFs
type PDFInspector interface {
	Inspect(ctx context.Context, content []byte) (pdf.Metadata, error)
}

// DocumentValidator validates uploads against size, type and content limits
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
	pdf    PDFInspector
}

type ValidatorConfig struct {
	MaxFileSize  int64
	AllowedTypes map[string]bool
	MinDimension int
	MaxDimension int
	MaxPageCount int
}

type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

type FileInfo struct {
	Filename  string         `json:"filename"`
	Size      int64          `json:"size"`
	MimeType  string         `json:"mimeType"`
	Extension string         `json:"extension"`
	Hash      string         `json:"hash"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Upload is one file handed to ValidateFiles
type Upload struct {
	Name    string
	Content []byte
}

// Options vary per batch
type Options struct {
	// AllowPDF is true when some usable source accepts PDFs
	AllowPDF bool
}

func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 50 << 20,
		AllowedTypes: map[string]bool{
			"image/jpeg": true,
			"image/png":  true,
			"image/webp": true,
			"image/gif":  true,
			"image/bmp":  true,
			"image/tiff": true,
			pdf.MimeType: true,
		},
		MinDimension: 32,
		MaxDimension: 12000,
		MaxPageCount: 50,
	}
}

// NewDocumentValidator fills zero fields of config from DefaultConfig
func NewDocumentValidator(log logger.Logger, config *ValidatorConfig, inspector PDFInspector) *DocumentValidator {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = def.MaxFileSize
	}
	if len(config.AllowedTypes) == 0 {
		config.AllowedTypes = def.AllowedTypes
	}
	if config.MinDimension <= 0 {
		config.MinDimension = def.MinDimension
	}
	if config.MaxDimension <= 0 {
		config.MaxDimension = def.MaxDimension
	}
	if config.MaxPageCount <= 0 {
		config.MaxPageCount = def.MaxPageCount
	}
	return &DocumentValidator{
		logger: log.Named("validator"),
		config: config,
		pdf:    inspector,
	}
}

// ValidateFile validates one upload. The detected MIME type is reported in
// FileInfo even when the file is rejected.
func (v *DocumentValidator) ValidateFile(ctx context.Context, name string, content []byte, opts Options) *ValidationResult {
	sum := sha256.Sum256(content)
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  name,
			Size:      int64(len(content)),
			Extension: strings.ToLower(filepath.Ext(name)),
			Hash:      hex.EncodeToString(sum[:]),
			Metadata:  make(map[string]any),
		},
	}
	reject := func(errs ...ValidationError) {
		if len(errs) == 0 {
			return
		}
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
	}

	reject(v.performBasicValidation(result.FileInfo)...)
	if !result.IsValid {
		return result
	}

	result.FileInfo.MimeType = v.detectMimeType(name, content)
	reject(v.validateMimeType(result.FileInfo, opts)...)
	if !result.IsValid {
		return result
	}

	reject(v.performTypeSpecificValidation(ctx, content, &result.FileInfo)...)
	if !result.IsValid {
		v.logger.Info("Upload rejected",
			logger.String("file", name),
			logger.String("code", result.Errors[0].Code),
		)
	}
	return result
}

// ValidateFiles validates a batch concurrently, keeping input order
func (v *DocumentValidator) ValidateFiles(ctx context.Context, files []Upload, opts Options) []*ValidationResult {
	results := make([]*ValidationResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(index int, file Upload) {
			defer wg.Done()
			results[index] = v.ValidateFile(ctx, file.Name, file.Content, opts)
		}(i, file)
	}
	wg.Wait()
	return results
}

func (v *DocumentValidator) performBasicValidation(info FileInfo) []ValidationError {
	var errors []ValidationError
	if info.Size == 0 {
		errors = append(errors, ValidationError{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		})
	}
	if info.Size > v.config.MaxFileSize {
		errors = append(errors, ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}
	return errors
}

// detectMimeType sniffs content and falls back to the extension
func (v *DocumentValidator) detectMimeType(name string, content []byte) string {
	detected := mimetype.Detect(content).String()
	detected, _, _ = strings.Cut(detected, ";")
	if v.config.AllowedTypes[detected] {
		return detected
	}
	if byExt, ok := agent.MIMEFromName(name); ok {
		return byExt
	}
	return detected
}

func (v *DocumentValidator) validateMimeType(info FileInfo, opts Options) []ValidationError {
	if !v.config.AllowedTypes[info.MimeType] {
		return []ValidationError{{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("File type %s is not allowed", info.MimeType),
			Field:   "mimeType",
		}}
	}
	if info.MimeType == pdf.MimeType && !opts.AllowPDF {
		return []ValidationError{{
			Code:    CodePDFNotSupported,
			Message: "PDF uploads need an enabled AI source that reads PDFs",
			Field:   "mimeType",
		}}
	}
	return nil
}

func (v *DocumentValidator) performTypeSpecificValidation(ctx context.Context, content []byte, info *FileInfo) []ValidationError {
	if info.MimeType == pdf.MimeType {
		return v.validatePDF(ctx, content, info)
	}
	return v.validateImage(content, info)
}

func (v *DocumentValidator) validatePDF(ctx context.Context, content []byte, info *FileInfo) []ValidationError {
	if v.pdf == nil {
		return nil
	}
	meta, err := v.pdf.Inspect(ctx, content)
	if err != nil {
		return []ValidationError{{
			Code:    CodeInvalidPDF,
			Message: fmt.Sprintf("Cannot read PDF: %v", err),
		}}
	}
	info.Metadata["pages"] = meta.Pages
	if meta.Title != "" {
		info.Metadata["title"] = meta.Title
	}
	if meta.Pages > v.config.MaxPageCount {
		return []ValidationError{{
			Code:    CodeTooManyPages,
			Message: fmt.Sprintf("PDF has %d pages, the limit is %d", meta.Pages, v.config.MaxPageCount),
			Field:   "pages",
		}}
	}
	return nil
}

func (v *DocumentValidator) validateImage(content []byte, info *FileInfo) []ValidationError {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return []ValidationError{{
			Code:    CodeInvalidImage,
			Message: fmt.Sprintf("Cannot read image: %v", err),
		}}
	}
	info.Metadata["width"] = cfg.Width
	info.Metadata["height"] = cfg.Height
	info.Metadata["format"] = format

	short, long := min(cfg.Width, cfg.Height), max(cfg.Width, cfg.Height)
	if short < v.config.MinDimension || long > v.config.MaxDimension {
		msg := fmt.Sprintf("Image is %dx%d, sides must be between %d and %d pixels",
			cfg.Width, cfg.Height, v.config.MinDimension, v.config.MaxDimension)
		return []ValidationError{{
			Code:    CodeInvalidDimension,
			Message: msg,
			Field:   "dimensions",
		}}
	}
	return nil
}
