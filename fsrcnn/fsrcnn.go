package fsrcnn

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

var ErrNotLoaded = errors.New("fsrcnn model not loaded")

// FSRCNN holds one OpenCV network bound to a single scale
type FSRCNN struct {
	mu     sync.Mutex
	net    gocv.Net
	loaded bool
	config Config
}

// Config holds the configuration options for a model
type Config struct {
	Scale   int
	Backend string
	Target  string
}

// DefaultConfig returns a CPU configuration for the given scale
func DefaultConfig(scale int) *Config {
	return &Config{
		Scale:   scale,
		Backend: "default",
		Target:  "cpu",
	}
}

// New creates an empty model, LoadModel must be called before Upsample
func New(config *Config) (*FSRCNN, error) {
	switch config.Scale {
	case 2, 3, 4:
	default:
		return nil, fmt.Errorf("fsrcnn has no x%d model", config.Scale)
	}

	return &FSRCNN{config: *config}, nil
}

// LoadModel reads the frozen tensorflow graph at modelPath
func (f *FSRCNN) LoadModel(modelPath string) error {
	absPath, err := filepath.Abs(modelPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %v", err)
	}

	if _, err = os.Stat(absPath); err != nil {
		return err
	}

	net := gocv.ReadNetFromTensorflow(absPath)
	if net.Empty() {
		return fmt.Errorf("failed to load model from %s", absPath)
	}

	if err := net.SetPreferableBackend(gocv.ParseNetBackend(f.config.Backend)); err != nil {
		net.Close()
		return fmt.Errorf("failed to set backend %s: %w", f.config.Backend, err)
	}

	if err := net.SetPreferableTarget(gocv.ParseNetTarget(f.config.Target)); err != nil {
		net.Close()
		return fmt.Errorf("failed to set target %s: %w", f.config.Target, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		f.net.Close()
	}
	f.net = net
	f.loaded = true

	return nil
}

func (f *FSRCNN) Scale() int {
	return f.config.Scale
}

// Close releases the network
func (f *FSRCNN) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded {
		f.net.Close()
		f.loaded = false
	}
}

// Upsample converts img to a BGR mat, runs it through the network and
// converts the result back
func (f *FSRCNN) Upsample(img image.Image) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	if err := f.UpsampleMat(src, &dst); err != nil {
		return nil, err
	}

	return dst.ToImage()
}

// UpsampleMat upsamples a BGR mat into dst
func (f *FSRCNN) UpsampleMat(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return errors.New("empty input")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		return ErrNotLoaded
	}

	outSize := image.Pt(src.Cols()*f.config.Scale, src.Rows()*f.config.Scale)

	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(src, &ycrcb, gocv.ColorBGRToYCrCb)

	channels := gocv.Split(ycrcb)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	blob := gocv.BlobFromImage(channels[0], 1.0/255.0, image.Pt(src.Cols(), src.Rows()),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	f.net.SetInput(blob, "")
	out := f.net.Forward("")
	defer out.Close()

	prediction := gocv.GetBlobChannel(out, 0, 0)
	defer prediction.Close()

	if prediction.Cols() != outSize.X || prediction.Rows() != outSize.Y {
		return fmt.Errorf("network produced %dx%d, expected %dx%d",
			prediction.Cols(), prediction.Rows(), outSize.X, outSize.Y)
	}

	luma := gocv.NewMat()
	defer luma.Close()
	prediction.ConvertToWithParams(&luma, gocv.MatTypeCV8U, 255, 0)

	cr := gocv.NewMat()
	defer cr.Close()
	gocv.Resize(channels[1], &cr, outSize, 0, 0, gocv.InterpolationCubic)

	cb := gocv.NewMat()
	defer cb.Close()
	gocv.Resize(channels[2], &cb, outSize, 0, 0, gocv.InterpolationCubic)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{luma, cr, cb}, &merged)

	gocv.CvtColor(merged, dst, gocv.ColorYCrCbToBGR)
	return nil
}
