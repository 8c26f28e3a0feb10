// Package image turns photographed homework pages into clean black-on-white
// PNGs before they are sent to a vision model.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

const OutputMimeType = "image/png"

type PreprocessConfig struct {
	DenoiseSize       int     `yaml:"denoiseSize"`
	BackgroundKernel  int     `yaml:"backgroundKernel"`
	BackgroundWidth   int     `yaml:"backgroundWidth"`
	AdaptiveBlockSize int     `yaml:"adaptiveBlockSize"`
	AdaptiveConstant  float64 `yaml:"adaptiveConstant"`
}

// DefaultPreprocessConfig is tuned for A4 pages photographed with a phone
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		DenoiseSize:       3,
		BackgroundKernel:  50,
		BackgroundWidth:   1000,
		AdaptiveBlockSize: 15,
		AdaptiveConstant:  10,
	}
}

// Binarizer runs grayscale, denoise, shadow removal and adaptive threshold
type Binarizer struct {
	logger        logger.Logger
	preprocessors []Preprocessor
}

func NewBinarizer(log logger.Logger, cfg PreprocessConfig) *Binarizer {
	return &Binarizer{
		logger: log.Named("binarize"),
		preprocessors: []Preprocessor{
			NewGrayscaleProcessor(),
			NewDenoiseProcessor(cfg.DenoiseSize),
			NewBackgroundFlattenProcessor(cfg.BackgroundKernel, cfg.BackgroundWidth),
			NewAdaptiveThresholdProcessor(cfg.AdaptiveBlockSize, cfg.AdaptiveConstant),
		},
	}
}

func (p *Binarizer) CanProcess(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp", "image/gif", "image/bmp", "image/tiff":
		return true
	default:
		return false
	}
}

// Binarize decodes content, applies the pipeline and returns PNG bytes
func (p *Binarizer) Binarize(ctx context.Context, content []byte) ([]byte, error) {
	start := time.Now()
	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	processed, err := p.applyPreprocessing(ctx, img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}

	b := img.Bounds()
	p.logger.Debug("Image binarized",
		logger.Int("width", b.Dx()),
		logger.Int("height", b.Dy()),
		logger.Int("inputBytes", len(content)),
		logger.Int("outputBytes", buf.Len()),
		logger.Duration("elapsed", time.Since(start)),
	)
	return buf.Bytes(), nil
}

func (p *Binarizer) applyPreprocessing(ctx context.Context, img image.Image) (image.Image, error) {
	var err error
	result := img
	for _, processor := range p.preprocessors {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		result, err = processor.Process(result)
		if err != nil {
			p.logger.Error("Preprocessing failed", logger.Error(err))
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
	}
	return result, nil
}
