//go:build nofsrcnn

package main

import (
	"errors"
	"testing"
)

func TestModelLoaderUnavailable(t *testing.T) {
	config := Config{}
	if err := verifyConfig(&config); err != nil {
		t.Fatalf("verify config: %v", err)
	}

	_, err := config.ModelLoader().Load(2)
	if !errors.Is(err, errEngineUnavailable) {
		t.Fatalf("expected errEngineUnavailable, got %v", err)
	}

	if !isPermanent(err) {
		t.Fatal("a missing engine should not be retried")
	}
}
