package upscale

import (
	"errors"
	"fmt"
)

var (
	ErrNotGIF           = errors.New("input file is not a gif")
	ErrTooLarge         = errors.New("too large to upscale")
	ErrUnsupportedScale = errors.New("unsupported scale")
	ErrNoFrames         = errors.New("no frames decoded")
)

func checkHeight(inputPath string, height int, sideCheck int) error {
	if height > sideCheck {
		return fmt.Errorf("%s is %w (height check set to %d)", inputPath, ErrTooLarge, sideCheck)
	}

	return nil
}

// CommandError carries the output of the external tool that failed.
type CommandError struct {
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandOutput returns the tool output attached to err, if any.
func CommandOutput(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Output
	}
	return ""
}
