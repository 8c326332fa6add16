package upscale

import (
	"image"

	"golang.org/x/image/draw"
)

// Frame is a packed rgb24 picture as exchanged with ffmpeg.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Image copies the frame into an opaque *image.RGBA.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	pixels := f.Width * f.Height
	if len(f.Data)/3 < pixels {
		pixels = len(f.Data) / 3
	}

	for i := 0; i < pixels; i++ {
		src := i * 3
		dst := i * 4
		img.Pix[dst] = f.Data[src]
		img.Pix[dst+1] = f.Data[src+1]
		img.Pix[dst+2] = f.Data[src+2]
		img.Pix[dst+3] = 255
	}

	return img
}

// FrameFromImage packs img into rgb24, dropping alpha.
func FrameFromImage(img image.Image) Frame {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != width*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	data := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		src := i * 4
		dst := i * 3
		data[dst] = rgba.Pix[src]
		data[dst+1] = rgba.Pix[src+1]
		data[dst+2] = rgba.Pix[src+2]
	}

	return Frame{
		Data:   data,
		Width:  width,
		Height: height,
	}
}
