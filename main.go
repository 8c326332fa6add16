package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/go-ansi"
)

var globalOptions struct {
	ConfigPath string `long:"config_path" default:"./config.yml" description:"Path to the config yml file"`
}

func newParser() *flags.Parser {
	parser := flags.NewParser(&globalOptions, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "upscalarr"

	parser.AddCommand("image", "Upscale still images",
		"Upscale still images with FSRCNN. Non jpg input is accepted with a warning.", &imageCommand{})
	parser.AddCommand("gif", "Upscale animated gifs",
		"Upscale every frame of animated gifs and rebuild a looping gif.", &gifCommand{})
	parser.AddCommand("8k", "Upscale images to around 8k",
		"Pick x2, x4 or x8 from the longer side of each image so the result lands around 8k.", &eightKCommand{})
	parser.AddCommand("serve", "Run the job service",
		"Serve the job API, process queued jobs with the worker pool and stream progress over websocket.", &serveCommand{})

	return parser
}

func main() {
	color.Output = ansi.NewAnsiStdout()

	_, err := newParser().Parse()
	if err == nil {
		return
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(os.Stdout, flagsErr.Message)
		return
	}

	color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
