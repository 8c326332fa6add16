package upscale

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// openImage decodes a still image with its EXIF orientation applied.
func openImage(path string) (image.Image, error) {
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// imageSize reads the dimensions from the header without decoding pixels.
func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}

	return config.Width, config.Height, nil
}

// saveImage encodes img using the format implied by the extension of path.
func saveImage(img image.Image, path string, quality int) error {
	if !strings.EqualFold(filepath.Ext(path), ".webp") {
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = webp.Encode(f, img, &webp.Options{Quality: float32(quality)})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
