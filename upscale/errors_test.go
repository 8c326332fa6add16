package upscale

import (
	"errors"
	"fmt"
	"testing"
)

func TestCheckHeight(t *testing.T) {
	if err := checkHeight("a.jpg", 100, 100); err != nil {
		t.Fatalf("height equal to the check should pass, got %v", err)
	}

	err := checkHeight("a.jpg", 101, 100)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	if want := "a.jpg is too large to upscale (height check set to 100)"; err.Error() != want {
		t.Fatalf("error = %q, want %q", err, want)
	}
}

func TestCommandOutput(t *testing.T) {
	inner := errors.New("exit status 1")
	err := fmt.Errorf("job 3: %w", &CommandError{Output: "Invalid data found", Err: inner})

	if got := CommandOutput(err); got != "Invalid data found" {
		t.Fatalf("CommandOutput = %q", got)
	}

	if !errors.Is(err, inner) {
		t.Fatal("CommandError should unwrap to the tool error")
	}

	if got := CommandOutput(inner); got != "" {
		t.Fatalf("CommandOutput of a plain error = %q", got)
	}
}
