package fsrcnn

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Raziel619/upscalarr/upscale"
)

func TestNewRejectsUnknownScale(t *testing.T) {
	for _, scale := range []int{0, 1, 5, 8} {
		if _, err := New(DefaultConfig(scale)); err == nil {
			t.Errorf("expected an error for x%d", scale)
		}
	}
}

func TestUpsampleBeforeLoad(t *testing.T) {
	m, err := New(DefaultConfig(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Close()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if _, err := m.Upsample(img); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestLoaderMissingModel(t *testing.T) {
	dir := t.TempDir()
	loader := Loader{ModelDir: dir}

	_, err := loader.Load(4)
	if err == nil {
		t.Fatal("expected an error for a missing model file")
	}

	if !strings.Contains(err.Error(), filepath.Join(dir, "FSRCNN_x4.pb")) {
		t.Fatalf("error %q should name the model path", err)
	}
}

func TestLoaderUnsupportedScale(t *testing.T) {
	_, err := Loader{ModelDir: t.TempDir()}.Load(8)
	if !errors.Is(err, upscale.ErrUnsupportedScale) {
		t.Fatalf("expected ErrUnsupportedScale, got %v", err)
	}
}

func TestModelFileName(t *testing.T) {
	if got := ModelFileName(3); got != "FSRCNN_x3.pb" {
		t.Fatalf("ModelFileName(3) = %q", got)
	}
}

// Needs the FSRCNN_x*.pb files, point FSRCNN_MODEL_DIR at them to run.
func TestUpsampleWithModel(t *testing.T) {
	dir := os.Getenv("FSRCNN_MODEL_DIR")
	if dir == "" {
		t.Skip("FSRCNN_MODEL_DIR not set")
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 20), 128, 255})
		}
	}

	for _, scale := range []int{2, 3, 4} {
		model, err := Loader{ModelDir: dir}.Load(scale)
		if err != nil {
			t.Fatalf("x%d: %v", scale, err)
		}

		out, err := model.Upsample(img)
		model.Close()
		if err != nil {
			t.Fatalf("x%d: %v", scale, err)
		}

		if b := out.Bounds(); b.Dx() != 16*scale || b.Dy() != 12*scale {
			t.Fatalf("x%d: output is %dx%d", scale, b.Dx(), b.Dy())
		}
	}
}
