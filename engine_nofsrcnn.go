//go:build nofsrcnn

package main

import (
	"fmt"

	"github.com/Raziel619/upscalarr/upscale"
)

// Built without OpenCV, only the bicubic engine works
type unavailableLoader struct{}

func (unavailableLoader) Load(scale int) (upscale.Upsampler, error) {
	return nil, fmt.Errorf("fsrcnn x%d: %w", scale, errEngineUnavailable)
}

func newFSRCNNLoader(c *Config) upscale.ModelLoader {
	return unavailableLoader{}
}
