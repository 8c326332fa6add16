package upscale

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// FFmpegOptions locates the ffmpeg tools and tunes decoding.
type FFmpegOptions struct {
	FFmpegBinary      string
	FFprobeBinary     string
	HWAccelDecodeFlag string
}

func (o FFmpegOptions) ffmpeg() string {
	if o.FFmpegBinary == "" {
		return "ffmpeg"
	}
	return o.FFmpegBinary
}

func (o FFmpegOptions) ffprobe() string {
	if o.FFprobeBinary == "" {
		return "ffprobe"
	}
	return o.FFprobeBinary
}

type FFProbeOutput struct {
	Streams []struct {
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		FrameRate      string `json:"r_frame_rate"`
		FrameCount     string `json:"nb_frames"`
		FrameCountRead string `json:"nb_read_frames"`
	} `json:"streams"`
}

type VideoInfo struct {
	InputPath  string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int64
}

func parseVideoInfoFFProbeOutput(output []byte) (*FFProbeOutput, error) {
	var probeOutput FFProbeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	if len(probeOutput.Streams) == 0 {
		return nil, fmt.Errorf("no video streams found")
	}

	return &probeOutput, nil
}

func checkDimensions(width int, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid video size %dx%d", width, height)
	}
	return nil
}

// parseFrameRate reads ffprobe's "num/den" notation. A zero denominator
// yields a zero rate.
func parseFrameRate(rate string) (float64, error) {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid framerate format: %q", rate)
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate numerator: %w", err)
	}

	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate denominator: %w", err)
	}

	if den == 0 {
		return 0, nil
	}

	return num / den, nil
}

// GetVideoInfo probes the first video stream of inputPath. The second return
// value is the tool's diagnostic output.
func GetVideoInfo(ctx context.Context, options FFmpegOptions, inputPath string) (*VideoInfo, string, error) {
	cmd := NewCommandContext(ctx, options.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-of", "json",
		inputPath)

	stdout, output, err := cmd.Output()
	if err != nil {
		return nil, output, err
	}

	ffprobeOutput, err := parseVideoInfoFFProbeOutput(stdout)
	if err != nil {
		return nil, output, err
	}

	mainStream := ffprobeOutput.Streams[0]
	frameRate, err := parseFrameRate(mainStream.FrameRate)
	if err != nil {
		return nil, output, err
	}

	if err := checkDimensions(mainStream.Width, mainStream.Height); err != nil {
		return nil, output, fmt.Errorf("%s: %w", inputPath, err)
	}

	var videoInfo VideoInfo
	videoInfo.InputPath = inputPath
	videoInfo.Width = mainStream.Width
	videoInfo.Height = mainStream.Height
	videoInfo.FrameRate = frameRate

	if mainStream.FrameCount != "" && mainStream.FrameCount != "N/A" {
		// container already contains frame count, no need to count
		frameCount, err := strconv.ParseInt(mainStream.FrameCount, 10, 64)
		if err != nil {
			return nil, output, err
		}

		videoInfo.FrameCount = frameCount
		return &videoInfo, output, nil
	}

	// container doesn't have frame count, counting frames
	cmd = NewCommandContext(ctx, options.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "json",
		inputPath)

	stdout, output, err = cmd.Output()
	if err != nil {
		return nil, output, err
	}

	ffprobeCountOutput, err := parseVideoInfoFFProbeOutput(stdout)
	if err != nil {
		return nil, output, err
	}

	frameCount, err := strconv.ParseInt(ffprobeCountOutput.Streams[0].FrameCountRead, 10, 64)
	if err != nil {
		return nil, output, err
	}

	videoInfo.FrameCount = frameCount
	return &videoInfo, output, nil
}

// FrameProcessor decodes frames of an animation through one ffmpeg process
// and encodes upscaled frames into a GIF through another.
type FrameProcessor struct {
	videoInfo VideoInfo
	options   FFmpegOptions
	frameSize int
	closed    bool

	// I/O handlers
	reader *Command
	writer *Command
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func NewFrameProcessor(videoInfo *VideoInfo, options FFmpegOptions) *FrameProcessor {
	return &FrameProcessor{
		videoInfo: *videoInfo,
		options:   options,
		frameSize: videoInfo.Width * videoInfo.Height * 3,
	}
}

func (fp *FrameProcessor) StartReading(ctx context.Context) error {
	args := []string{}
	if fp.options.HWAccelDecodeFlag != "" {
		args = append(args, "-hwaccel", fp.options.HWAccelDecodeFlag)
	}

	args = append(args, "-i", fp.videoInfo.InputPath,
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1")

	fp.reader = NewCommandContext(ctx, fp.options.ffmpeg(), args...)
	stdout, err := fp.reader.GetStdout()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	fp.stdout = stdout
	return fp.reader.Start()
}

// StartWriting encodes a looping GIF of width x height at frameRate, using a
// palette generated from the whole sequence.
func (fp *FrameProcessor) StartWriting(ctx context.Context, outputPath string, width int, height int, frameRate float64) error {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.FormatFloat(frameRate, 'f', -1, 64),
		"-i", "pipe:0",
		"-filter_complex", "[0:v]split[a][b];[a]palettegen[p];[b][p]paletteuse",
		"-loop", "0",
		"-f", "gif",
		outputPath,
	}

	fp.writer = NewCommandContext(ctx, fp.options.ffmpeg(), args...)
	stdin, err := fp.writer.GetStdin()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}

	fp.stdin = stdin
	return fp.writer.Start()
}

// ReadFrame returns io.EOF once the input is exhausted.
func (fp *FrameProcessor) ReadFrame() (Frame, error) {
	if fp.frameSize <= 0 {
		return Frame{}, fmt.Errorf("invalid frame size %dx%d", fp.videoInfo.Width, fp.videoInfo.Height)
	}

	buf := make([]byte, fp.frameSize)
	_, err := io.ReadFull(fp.stdout, buf)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Data:   buf,
		Width:  fp.videoInfo.Width,
		Height: fp.videoInfo.Height,
	}, nil
}

func (fp *FrameProcessor) WriteFrame(frame Frame) error {
	_, err := fp.stdin.Write(frame.Data)
	return err
}

// Close flushes the encoder and reaps both processes. It is safe to call
// more than once.
func (fp *FrameProcessor) Close() error {
	if fp.closed {
		return nil
	}
	fp.closed = true

	var result *multierror.Error

	if fp.stdin != nil {
		if err := fp.stdin.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing stdin: %w", err))
		}
	}

	if fp.writer != nil {
		if err := fp.writer.Wait(); err != nil {
			result = multierror.Append(result, fmt.Errorf("waiting for writer: %w", err))
		}
	}

	if fp.stdout != nil {
		if err := fp.stdout.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing stdout: %w", err))
		}
	}

	if fp.reader != nil {
		if err := fp.reader.Wait(); err != nil {
			result = multierror.Append(result, fmt.Errorf("waiting for reader: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// Output returns what both ffmpeg processes wrote to stderr.
func (fp *FrameProcessor) Output() string {
	var parts []string
	if fp.reader != nil {
		parts = append(parts, fp.reader.GetOutput())
	}
	if fp.writer != nil {
		parts = append(parts, fp.writer.GetOutput())
	}
	return strings.Join(parts, "\n")
}

// Getters for video properties
func (fp *FrameProcessor) Width() int         { return fp.videoInfo.Width }
func (fp *FrameProcessor) Height() int        { return fp.videoInfo.Height }
func (fp *FrameProcessor) FrameRate() float64 { return fp.videoInfo.FrameRate }
func (fp *FrameProcessor) FrameSize() int     { return fp.frameSize }
