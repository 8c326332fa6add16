package upscale

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Upsampler is a loaded super-resolution model bound to a single scale.
type Upsampler interface {
	Upsample(img image.Image) (image.Image, error)
	Scale() int
	Close()
}

// ModelLoader builds a fresh Upsampler for the requested scale.
// Callers own the returned handle and must Close it.
type ModelLoader interface {
	Load(scale int) (Upsampler, error)
}

// SupportedScales lists the scales a single model pass can produce.
var SupportedScales = []int{2, 3, 4}

func IsSupportedScale(scale int) bool {
	for _, s := range SupportedScales {
		if s == scale {
			return true
		}
	}
	return false
}

// BicubicLoader resizes with a Catmull-Rom filter instead of a network.
// It is meant for previews and for machines without the model files.
type BicubicLoader struct{}

func (BicubicLoader) Load(scale int) (Upsampler, error) {
	if !IsSupportedScale(scale) {
		return nil, fmt.Errorf("bicubic x%d: %w", scale, ErrUnsupportedScale)
	}

	return &bicubic{scale: scale}, nil
}

type bicubic struct {
	scale int
}

func (b *bicubic) Upsample(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	return imaging.Resize(img, bounds.Dx()*b.scale, bounds.Dy()*b.scale, imaging.CatmullRom), nil
}

func (b *bicubic) Scale() int { return b.scale }
func (b *bicubic) Close()     {}
