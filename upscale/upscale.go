package upscale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Size bands used by ImageTo8K, measured on the longer side of the input.
const (
	EightKSide = 5500
	X2MinSide  = 3000
	X4MinSide  = 1500
)

// DefaultGIFFPS is the frame rate of re-encoded GIFs.
const DefaultGIFFPS = 8

// SideChecks holds the default maximum input height per operation.
type SideChecks struct {
	X2  int
	X3  int
	X4  int
	X8  int
	GIF int
}

type Options struct {
	Marker           string
	Quality          int
	GIFFPS           float64
	GIFKeepSourceFPS bool
	SideChecks       SideChecks
	FFmpeg           FFmpegOptions
}

func DefaultOptions() Options {
	return Options{
		Marker:  DefaultMarker,
		Quality: 95,
		GIFFPS:  DefaultGIFFPS,
		SideChecks: SideChecks{
			X2:  4000,
			X3:  3500,
			X4:  3000,
			X8:  1500,
			GIF: 2000,
		},
	}
}

// ProgressFunc receives the number of frames done and the expected total.
// total is zero when unknown.
type ProgressFunc func(done int64, total int64)

// Upscaler runs the upscale operations. Every call loads its own model
// handles through the loader and closes them before returning.
type Upscaler struct {
	loader   ModelLoader
	logger   *logrus.Entry
	options  Options
	progress ProgressFunc
}

func New(loader ModelLoader, logger *logrus.Entry, options Options) *Upscaler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	defaults := DefaultOptions()
	if options.Marker == "" {
		options.Marker = defaults.Marker
	}
	if options.Quality <= 0 || options.Quality > 100 {
		options.Quality = defaults.Quality
	}
	if options.GIFFPS <= 0 {
		options.GIFFPS = defaults.GIFFPS
	}
	if options.SideChecks.X2 <= 0 {
		options.SideChecks.X2 = defaults.SideChecks.X2
	}
	if options.SideChecks.X3 <= 0 {
		options.SideChecks.X3 = defaults.SideChecks.X3
	}
	if options.SideChecks.X4 <= 0 {
		options.SideChecks.X4 = defaults.SideChecks.X4
	}
	if options.SideChecks.X8 <= 0 {
		options.SideChecks.X8 = defaults.SideChecks.X8
	}
	if options.SideChecks.GIF <= 0 {
		options.SideChecks.GIF = defaults.SideChecks.GIF
	}

	return &Upscaler{
		loader:  loader,
		logger:  logger,
		options: options,
	}
}

// WithProgress returns a copy of u reporting GIF frame progress to fn.
func (u *Upscaler) WithProgress(fn ProgressFunc) *Upscaler {
	c := *u
	c.progress = fn
	return &c
}

// WithLogger returns a copy of u logging to logger.
func (u *Upscaler) WithLogger(logger *logrus.Entry) *Upscaler {
	c := *u
	c.logger = logger
	return &c
}

func (u *Upscaler) Options() Options {
	return u.options
}

func (u *Upscaler) ImageX2(ctx context.Context, inputPath string, sideCheck int) (string, error) {
	return u.Image(ctx, inputPath, 2, sideCheck)
}

func (u *Upscaler) ImageX4(ctx context.Context, inputPath string, sideCheck int) (string, error) {
	return u.Image(ctx, inputPath, 4, sideCheck)
}

// ImageX8 approximates an 8x upscale with a 2x pass followed by a 4x pass.
func (u *Upscaler) ImageX8(ctx context.Context, inputPath string, sideCheck int) (string, error) {
	if sideCheck <= 0 {
		sideCheck = u.options.SideChecks.X8
	}

	return u.upscaleImage(ctx, "ImageX8", inputPath, []int{2, 4}, sideCheck)
}

// Image upscales a still image with a single pass of the model for scale.
func (u *Upscaler) Image(ctx context.Context, inputPath string, scale int, sideCheck int) (string, error) {
	if !IsSupportedScale(scale) {
		return "", fmt.Errorf("image x%d: %w", scale, ErrUnsupportedScale)
	}

	if sideCheck <= 0 {
		sideCheck = u.defaultSideCheck(scale)
	}

	return u.upscaleImage(ctx, fmt.Sprintf("ImageX%d", scale), inputPath, []int{scale}, sideCheck)
}

func (u *Upscaler) defaultSideCheck(scale int) int {
	switch scale {
	case 2:
		return u.options.SideChecks.X2
	case 3:
		return u.options.SideChecks.X3
	default:
		return u.options.SideChecks.X4
	}
}

func (u *Upscaler) upscaleImage(ctx context.Context, operation string, inputPath string, scales []int, sideCheck int) (string, error) {
	logger := u.logger.WithField("input", inputPath).WithField("operation", operation)

	if !IsJPG(inputPath) {
		logger.Warnf("%s - %s is not jpg, upscaler may give poor results or fail", operation, inputPath)
	}

	// Header first, oversized input is rejected without decoding
	_, headerHeight, err := imageSize(inputPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inputPath, err)
	}

	if err := checkHeight(inputPath, headerHeight, sideCheck); err != nil {
		return "", err
	}

	models := make([]Upsampler, 0, len(scales))
	defer func() {
		for _, model := range models {
			model.Close()
		}
	}()

	for _, scale := range scales {
		model, err := u.loader.Load(scale)
		if err != nil {
			return "", fmt.Errorf("loading x%d model: %w", scale, err)
		}
		models = append(models, model)
	}

	outputPath := OutputPath(inputPath, u.options.Marker)

	img, err := openImage(inputPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inputPath, err)
	}

	// EXIF orientation can swap the sides
	if err := checkHeight(inputPath, img.Bounds().Dy(), sideCheck); err != nil {
		return "", err
	}

	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		logger.WithField("scale", model.Scale()).Debug("Running upsample pass")
		img, err = model.Upsample(img)
		if err != nil {
			return "", fmt.Errorf("upsampling x%d: %w", model.Scale(), err)
		}
	}

	if err := saveImage(img, outputPath, u.options.Quality); err != nil {
		return "", fmt.Errorf("writing %s: %w", outputPath, err)
	}

	logger.WithField("output", outputPath).Info("Upscaled image")
	return outputPath, nil
}

func (u *Upscaler) GIFX4(ctx context.Context, inputPath string, sideCheck int) (string, error) {
	return u.GIF(ctx, inputPath, 4, sideCheck)
}

// GIF upscales every frame of an animated GIF and re-encodes a looping GIF.
func (u *Upscaler) GIF(ctx context.Context, inputPath string, scale int, sideCheck int) (string, error) {
	logger := u.logger.WithField("input", inputPath).WithField("operation", fmt.Sprintf("GIFX%d", scale))

	if !IsGIF(inputPath) {
		return "", fmt.Errorf("%s: %w", inputPath, ErrNotGIF)
	}

	if !IsSupportedScale(scale) {
		return "", fmt.Errorf("gif x%d: %w", scale, ErrUnsupportedScale)
	}

	if sideCheck <= 0 {
		sideCheck = u.options.SideChecks.GIF
	}

	model, err := u.loader.Load(scale)
	if err != nil {
		return "", fmt.Errorf("loading x%d model: %w", scale, err)
	}
	defer model.Close()

	outputPath := OutputPath(inputPath, u.options.Marker)

	videoInfo, output, err := GetVideoInfo(ctx, u.options.FFmpeg, inputPath)
	if err != nil {
		if output != "" {
			logger.Debug("ffprobe output: ", output)
		}
		return "", &CommandError{Output: output, Err: fmt.Errorf("probing %s: %w", inputPath, err)}
	}

	if err := checkHeight(inputPath, videoInfo.Height, sideCheck); err != nil {
		return "", err
	}

	frameRate := u.options.GIFFPS
	if u.options.GIFKeepSourceFPS && videoInfo.FrameRate > 0 {
		frameRate = videoInfo.FrameRate
	}

	logger.WithFields(logrus.Fields{
		"width":      videoInfo.Width,
		"height":     videoInfo.Height,
		"frameCount": videoInfo.FrameCount,
		"frameRate":  frameRate,
	}).Debug("Probed gif")

	frames, err := u.upscaleFrames(ctx, model, videoInfo, outputPath, frameRate, logger)
	if err != nil {
		os.Remove(outputPath)
		return "", err
	}

	logger.WithField("output", outputPath).WithField("frames", frames).Info("Upscaled gif")
	return outputPath, nil
}

func (u *Upscaler) upscaleFrames(ctx context.Context, model Upsampler, videoInfo *VideoInfo,
	outputPath string, frameRate float64, logger *logrus.Entry) (int64, error) {
	scale := model.Scale()
	width, height := videoInfo.Width*scale, videoInfo.Height*scale

	fp := NewFrameProcessor(videoInfo, u.options.FFmpeg)
	defer fp.Close()

	if err := fp.StartReading(ctx); err != nil {
		return 0, fmt.Errorf("starting decoder: %w", err)
	}

	if err := fp.StartWriting(ctx, outputPath, width, height, frameRate); err != nil {
		return 0, fmt.Errorf("starting encoder: %w", err)
	}

	var frames int64
	for {
		frame, err := fp.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Debug("ffmpeg output: ", fp.Output())
			return frames, &CommandError{Output: fp.Output(), Err: fmt.Errorf("reading frame %d: %w", frames, err)}
		}

		upscaled, err := model.Upsample(frame.Image())
		if err != nil {
			return frames, fmt.Errorf("upsampling frame %d: %w", frames, err)
		}

		if bounds := upscaled.Bounds(); bounds.Dx() != width || bounds.Dy() != height {
			return frames, fmt.Errorf("upsampled frame %d is %dx%d, expected %dx%d",
				frames, bounds.Dx(), bounds.Dy(), width, height)
		}

		if err := fp.WriteFrame(FrameFromImage(upscaled)); err != nil {
			logger.Debug("ffmpeg output: ", fp.Output())
			return frames, &CommandError{Output: fp.Output(), Err: fmt.Errorf("writing frame %d: %w", frames, err)}
		}

		frames++
		if u.progress != nil {
			u.progress(frames, videoInfo.FrameCount)
		}
	}

	if frames == 0 {
		return 0, fmt.Errorf("%s: %w", videoInfo.InputPath, ErrNoFrames)
	}

	if err := fp.Close(); err != nil {
		logger.Debug("ffmpeg output: ", fp.Output())
		return frames, &CommandError{Output: fp.Output(), Err: fmt.Errorf("encoding %s: %w", outputPath, err)}
	}

	return frames, ctx.Err()
}

// ImageTo8K picks a scale from the longer side of the input so the result
// lands around 8k. Inputs already at or above EightKSide are returned as is.
func (u *Upscaler) ImageTo8K(ctx context.Context, inputPath string) (string, error) {
	width, height, err := imageSize(inputPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", inputPath, err)
	}

	side := max(width, height)
	logger := u.logger.WithField("input", inputPath).WithField("side", side)

	switch {
	case side >= EightKSide:
		logger.Info("Image is already 8k, nothing to do")
		return inputPath, nil
	case side >= X2MinSide:
		logger.Debug("Dispatching to x2")
		return u.ImageX2(ctx, inputPath, EightKSide)
	case side >= X4MinSide:
		logger.Debug("Dispatching to x4")
		return u.ImageX4(ctx, inputPath, X2MinSide)
	default:
		logger.Debug("Dispatching to x8")
		return u.ImageX8(ctx, inputPath, X4MinSide)
	}
}
