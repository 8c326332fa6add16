package upscale

import (
	"path/filepath"
	"strings"
)

// DefaultMarker is inserted between the input name and its extension.
const DefaultMarker = "_u"

func IsJPG(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}

func IsGIF(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".gif")
}

// OutputPath returns inputPath with marker inserted before the extension.
// A path without extension gets the marker appended.
func OutputPath(inputPath string, marker string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + marker + ext
}
