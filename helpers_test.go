package main

import (
	"image"
	"image/color"
	_ "image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func writeImage(t *testing.T, name string, width int, height int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	img := imaging.New(width, height, color.NRGBA{R: 30, G: 120, B: 210, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func imageDimensions(t *testing.T, path string) (int, int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return config.Width, config.Height
}

func newTestSqlite(t *testing.T) *Sqlite {
	t.Helper()

	db, err := NewSqlite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}
