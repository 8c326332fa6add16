package fsrcnn

import (
	"fmt"
	"path/filepath"

	"github.com/Raziel619/upscalarr/upscale"
)

// ModelFileName is the name of the frozen graph for scale inside a model dir
func ModelFileName(scale int) string {
	return fmt.Sprintf("FSRCNN_x%d.pb", scale)
}

// Loader loads FSRCNN_x<scale>.pb files from ModelDir
type Loader struct {
	ModelDir string
	Backend  string
	Target   string
}

func (l Loader) ModelPath(scale int) string {
	return filepath.Join(l.ModelDir, ModelFileName(scale))
}

func (l Loader) Load(scale int) (upscale.Upsampler, error) {
	if !upscale.IsSupportedScale(scale) {
		return nil, fmt.Errorf("fsrcnn x%d: %w", scale, upscale.ErrUnsupportedScale)
	}

	config := DefaultConfig(scale)
	if l.Backend != "" {
		config.Backend = l.Backend
	}
	if l.Target != "" {
		config.Target = l.Target
	}

	model, err := New(config)
	if err != nil {
		return nil, err
	}

	if err := model.LoadModel(l.ModelPath(scale)); err != nil {
		model.Close()
		return nil, fmt.Errorf("loading %s: %w", l.ModelPath(scale), err)
	}

	return model, nil
}
