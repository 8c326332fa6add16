package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Raziel619/upscalarr/upscale"
	"github.com/hashicorp/go-multierror"
	"github.com/k0kubun/go-ansi"
	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

type app struct {
	config   Config
	logger   *logrus.Entry
	upscaler *upscale.Upscaler
}

func newApp(name string) (*app, error) {
	config, err := GetConfig(globalOptions.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err := InitLogFile(config.LogPath); err != nil {
		return nil, err
	}

	logger, err := CreateLogger(name)
	if err != nil {
		return nil, err
	}

	return &app{
		config:   config,
		logger:   logger,
		upscaler: upscale.New(config.ModelLoader(), logger, config.UpscaleOptions()),
	}, nil
}

// eachFile runs fn on every file, a failing file doesn't stop the others
func eachFile(files []string, fn func(ctx context.Context, file string) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *multierror.Error
	for _, file := range files {
		if ctx.Err() != nil {
			result = multierror.Append(result, ctx.Err())
			break
		}

		if err := fn(ctx, file); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

type filesArgs struct {
	Files []string `positional-arg-name:"FILE" required:"1"`
}

type imageCommand struct {
	Scale     int       `short:"s" long:"scale" default:"2" choice:"2" choice:"3" choice:"4" choice:"8" description:"Upscale factor, 8 runs a x2 pass then a x4 pass"`
	SideCheck int       `long:"side-check" description:"Maximum input height, 0 uses the configured value"`
	Args      filesArgs `positional-args:"yes" required:"yes"`
}

func (cmd *imageCommand) Execute(args []string) error {
	a, err := newApp("image")
	if err != nil {
		return err
	}

	return eachFile(cmd.Args.Files, func(ctx context.Context, file string) error {
		var output string
		var err error
		if cmd.Scale == 8 {
			output, err = a.upscaler.ImageX8(ctx, file, cmd.SideCheck)
		} else {
			output, err = a.upscaler.Image(ctx, file, cmd.Scale, cmd.SideCheck)
		}

		if err != nil {
			return err
		}

		colorstring.Printf("[green]Upscaled image[reset] - %s\n", output)
		return nil
	})
}

type gifCommand struct {
	Scale     int       `short:"s" long:"scale" default:"4" choice:"2" choice:"3" choice:"4" description:"Upscale factor"`
	SideCheck int       `long:"side-check" description:"Maximum input height, 0 uses the configured value"`
	Args      filesArgs `positional-args:"yes" required:"yes"`
}

func (cmd *gifCommand) Execute(args []string) error {
	a, err := newApp("gif")
	if err != nil {
		return err
	}

	return eachFile(cmd.Args.Files, func(ctx context.Context, file string) error {
		bar := newFrameBar(file)
		u := a.upscaler.WithProgress(func(done int64, total int64) {
			if total > 0 && bar.GetMax64() != total {
				bar.ChangeMax64(total)
			}
			bar.Set64(done)
		})

		output, err := u.GIF(ctx, file, cmd.Scale, cmd.SideCheck)
		if err != nil {
			bar.Exit()
			return err
		}

		bar.Finish()
		colorstring.Printf("[green]Upscaled gif[reset] - %s\n", output)
		return nil
	})
}

type eightKCommand struct {
	Args filesArgs `positional-args:"yes" required:"yes"`
}

func (cmd *eightKCommand) Execute(args []string) error {
	a, err := newApp("8k")
	if err != nil {
		return err
	}

	return eachFile(cmd.Args.Files, func(ctx context.Context, file string) error {
		output, err := a.upscaler.ImageTo8K(ctx, file)
		if err != nil {
			return err
		}

		if output == file {
			colorstring.Printf("[yellow]Already 8k[reset] - %s\n", output)
			return nil
		}

		colorstring.Printf("[green]Upscaled image[reset] - %s\n", output)
		return nil
	})
}

func newFrameBar(name string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", name)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(ansi.NewAnsiStdout(), "\n")
		}),
	)
}
