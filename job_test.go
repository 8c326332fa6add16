package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Raziel619/upscalarr/upscale"
)

func TestPrepareJob(t *testing.T) {
	tests := []struct {
		name     string
		job      Job
		wantMode Mode
		wantOut  string
		wantErr  bool
	}{
		{"gif defaults to gif mode", Job{Path: "media/anim.GIF"}, ModeGIF, "media/anim_u.GIF", false},
		{"image defaults to 8k", Job{Path: "media/photo.jpeg"}, Mode8K, "media/photo_u.jpeg", false},
		{"explicit mode kept", Job{Path: "photo.png", Mode: ModeX4}, ModeX4, "photo_u.png", false},
		{"unknown mode", Job{Path: "photo.png", Mode: "x16"}, "", "", true},
		{"gif mode needs a gif", Job{Path: "photo.jpg", Mode: ModeGIF}, "", "", true},
		{"missing path", Job{Mode: ModeX2}, "", "", true},
		{"negative side check", Job{Path: "photo.jpg", SideCheck: -1}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.job
			err := prepareJob(&job, upscale.DefaultMarker)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.Mode != tt.wantMode {
				t.Errorf("mode = %q, want %q", job.Mode, tt.wantMode)
			}
			if job.OutputPath != tt.wantOut {
				t.Errorf("output = %q, want %q", job.OutputPath, tt.wantOut)
			}
			if job.TraceID == "" {
				t.Error("trace id should be set")
			}
		})
	}
}

func TestPrepareJobTraceIDsDiffer(t *testing.T) {
	a, b := Job{Path: "a.jpg"}, Job{Path: "a.jpg"}
	if err := prepareJob(&a, "_u"); err != nil {
		t.Fatal(err)
	}
	if err := prepareJob(&b, "_u"); err != nil {
		t.Fatal(err)
	}

	if a.TraceID == b.TraceID {
		t.Fatalf("trace ids should be unique, both are %s", a.TraceID)
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("job: %w", upscale.ErrTooLarge), true},
		{fmt.Errorf("job: %w", upscale.ErrNotGIF), true},
		{upscale.ErrUnsupportedScale, true},
		{errJobInputNotFound, true},
		{errors.New("exit status 1"), false},
		{context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		if got := isPermanent(tt.err); got != tt.want {
			t.Errorf("isPermanent(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunJobMissingInput(t *testing.T) {
	u := upscale.New(upscale.BicubicLoader{}, discardLogger(), upscale.DefaultOptions())
	job := Job{Path: filepath.Join(t.TempDir(), "gone.jpg"), Mode: ModeX2}

	if _, err := runJob(context.Background(), u, &job); !errors.Is(err, errJobInputNotFound) {
		t.Fatalf("expected errJobInputNotFound, got %v", err)
	}
}

func TestRunJobModes(t *testing.T) {
	u := upscale.New(upscale.BicubicLoader{}, discardLogger(), upscale.DefaultOptions())

	tests := []struct {
		mode   Mode
		factor int
	}{
		{ModeX2, 2},
		{ModeX4, 4},
		{ModeX8, 8},
		{Mode8K, 8},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			job := Job{Path: writeImage(t, "photo.jpg", 6, 5), Mode: tt.mode}

			output, err := runJob(context.Background(), u, &job)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			width, height := imageDimensions(t, output)
			if width != 6*tt.factor || height != 5*tt.factor {
				t.Fatalf("output is %dx%d, want %dx%d", width, height, 6*tt.factor, 5*tt.factor)
			}
		})
	}
}
