//go:build !nofsrcnn

package main

import (
	"github.com/Raziel619/upscalarr/fsrcnn"
	"github.com/Raziel619/upscalarr/upscale"
)

func newFSRCNNLoader(c *Config) upscale.ModelLoader {
	return fsrcnn.Loader{
		ModelDir: c.ModelDir,
		Backend:  c.NetBackend,
		Target:   c.NetTarget,
	}
}
