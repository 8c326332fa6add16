package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Raziel619/upscalarr/upscale"
	"github.com/google/uuid"
)

type Mode string

const (
	ModeX2  Mode = "x2"
	ModeX4  Mode = "x4"
	ModeX8  Mode = "x8"
	Mode8K  Mode = "8k"
	ModeGIF Mode = "gif"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeX2, ModeX4, ModeX8, Mode8K, ModeGIF:
		return true
	}
	return false
}

type Job struct {
	ID         int64  `json:"id"`
	TraceID    string `json:"traceId"`
	Path       string `json:"path" binding:"required"`
	Mode       Mode   `json:"mode"`
	SideCheck  int    `json:"sideCheck"`
	OutputPath string `json:"outputPath"`
	Done       bool   `json:"done"`
	Failed     bool   `json:"failed"`
	Retries    int    `json:"retries"`
}

type FailedJob struct {
	ID     int64  `json:"id"`
	Output string `json:"output"`
	Error  string `json:"error"`
	Job    Job    `json:"job"`
}

var (
	errJobInputNotFound  = errors.New("source file not found")
	errEngineUnavailable = errors.New("engine not available in this build, use engine: bicubic")
)

// prepareJob fills the defaults of a job received from the API
func prepareJob(job *Job, marker string) error {
	if job.Path == "" {
		return errors.New("missing path")
	}

	if job.Mode == "" {
		job.Mode = Mode8K
		if upscale.IsGIF(job.Path) {
			job.Mode = ModeGIF
		}
	}

	if !job.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", job.Mode)
	}

	if job.Mode == ModeGIF && !upscale.IsGIF(job.Path) {
		return fmt.Errorf("%s: %w", job.Path, upscale.ErrNotGIF)
	}

	if job.SideCheck < 0 {
		return errors.New("sideCheck can't be negative")
	}

	job.TraceID = uuid.NewString()
	job.OutputPath = upscale.OutputPath(job.Path, marker)
	return nil
}

// runJob dispatches the job to the operation for its mode
func runJob(ctx context.Context, u *upscale.Upscaler, job *Job) (string, error) {
	exist, err := PathExist(job.Path)
	if err != nil {
		return "", err
	}

	if !exist {
		return "", fmt.Errorf("%s: %w", job.Path, errJobInputNotFound)
	}

	switch job.Mode {
	case ModeX2:
		return u.ImageX2(ctx, job.Path, job.SideCheck)
	case ModeX4:
		return u.ImageX4(ctx, job.Path, job.SideCheck)
	case ModeX8:
		return u.ImageX8(ctx, job.Path, job.SideCheck)
	case Mode8K:
		return u.ImageTo8K(ctx, job.Path)
	case ModeGIF:
		return u.GIFX4(ctx, job.Path, job.SideCheck)
	}

	return "", fmt.Errorf("unknown mode %q", job.Mode)
}

// isPermanent reports errors that retrying can't fix
func isPermanent(err error) bool {
	return errors.Is(err, upscale.ErrTooLarge) ||
		errors.Is(err, upscale.ErrNotGIF) ||
		errors.Is(err, upscale.ErrUnsupportedScale) ||
		errors.Is(err, errJobInputNotFound) ||
		errors.Is(err, errEngineUnavailable) ||
		errors.Is(err, os.ErrNotExist)
}
