package image

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Preprocessor is one step of the binarization pipeline
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// GrayscaleProcessor converts to 8-bit luminance
type GrayscaleProcessor struct{}

func NewGrayscaleProcessor() *GrayscaleProcessor {
	return &GrayscaleProcessor{}
}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	return toGray(imaging.Grayscale(img)), nil
}

// DenoiseProcessor removes specks with a small morphological close then open
type DenoiseProcessor struct {
	size int
}

func NewDenoiseProcessor(size int) *DenoiseProcessor {
	return &DenoiseProcessor{size: size}
}

func (p *DenoiseProcessor) Process(img image.Image) (image.Image, error) {
	if p.size < 2 {
		return img, nil
	}
	g := toGray(img)
	closed := erode(dilate(g, p.size), p.size)
	return dilate(erode(closed, p.size), p.size), nil
}

// BackgroundFlattenProcessor removes shadows by dividing the page by an
// estimate of its illumination. The estimate is a large morphological close
// computed on a downscaled copy.
type BackgroundFlattenProcessor struct {
	kernel int
	// workWidth is the width the background is estimated at
	workWidth int
}

func NewBackgroundFlattenProcessor(kernel, workWidth int) *BackgroundFlattenProcessor {
	return &BackgroundFlattenProcessor{kernel: kernel, workWidth: workWidth}
}

func (p *BackgroundFlattenProcessor) Process(img image.Image) (image.Image, error) {
	g := toGray(img)
	b := g.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	kernel := p.kernel
	small := g
	if p.workWidth > 0 && b.Dx() > p.workWidth {
		small = toGray(imaging.Resize(g, p.workWidth, 0, imaging.Box))
		kernel = max(kernel*p.workWidth/b.Dx(), 3)
	}
	bg := erode(dilate(small, kernel), kernel)
	if small != g {
		bg = toGray(imaging.Resize(bg, b.Dx(), b.Dy(), imaging.Linear))
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		den := bg.Pix[y*bg.Stride : y*bg.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			if den[x] == 0 {
				dst[x] = 255
				continue
			}
			v := int(src[x]) * 255 / int(den[x])
			dst[x] = uint8(min(v, 255))
		}
	}
	return out, nil
}

// AdaptiveThresholdProcessor binarizes against a Gaussian-weighted local
// mean. Pixels darker than mean-constant become black.
type AdaptiveThresholdProcessor struct {
	blockSize int
	constant  float64
}

func NewAdaptiveThresholdProcessor(blockSize int, constant float64) *AdaptiveThresholdProcessor {
	return &AdaptiveThresholdProcessor{
		blockSize: blockSize,
		constant:  constant,
	}
}

func (p *AdaptiveThresholdProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	if p.blockSize < 3 || p.blockSize%2 == 0 {
		return nil, fmt.Errorf("block size must be odd and >= 3, got %d", p.blockSize)
	}

	g := toGray(img)
	// sigma OpenCV derives for a Gaussian kernel of this size
	sigma := 0.3*(float64(p.blockSize-1)*0.5-1) + 0.8
	mean := toGray(imaging.Blur(g, sigma))

	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		avg := mean.Pix[y*mean.Stride : y*mean.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			if float64(src[x]) > float64(avg[x])-p.constant {
				dst[x] = 255
			}
		}
	}
	return out, nil
}

// toGray returns img as a zero-origin *image.Gray
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Pix[y*g.Stride+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return g
}

func dilate(g *image.Gray, size int) *image.Gray {
	return rankFilter(g, size, func(a, b uint8) bool { return a > b })
}

func erode(g *image.Gray, size int) *image.Gray {
	return rankFilter(g, size, func(a, b uint8) bool { return a < b })
}

// rankFilter applies a separable size x size max or min filter
func rankFilter(g *image.Gray, size int, better func(a, b uint8) bool) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	lo := (size - 1) / 2
	hi := size - 1 - lo

	tmp := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := tmp.Pix[y*tmp.Stride : y*tmp.Stride+w]
		for x := 0; x < w; x++ {
			v := row[x]
			for k := max(x-lo, 0); k <= min(x+hi, w-1); k++ {
				if better(row[k], v) {
					v = row[k]
				}
			}
			dst[x] = v
		}
	}

	out := image.NewGray(g.Rect)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			v := tmp.Pix[y*tmp.Stride+x]
			for k := max(y-lo, 0); k <= min(y+hi, h-1); k++ {
				if c := tmp.Pix[k*tmp.Stride+x]; better(c, v) {
					v = c
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}
