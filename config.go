package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Raziel619/upscalarr/upscale"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BindAddress      string        `yaml:"bindAddress"`
	Port             int32         `yaml:"port"`
	DatabasePath     string        `yaml:"databasePath"`
	LogPath          string        `yaml:"logPath"`
	ModelDir         string        `yaml:"modelDir"`
	Engine           string        `yaml:"engine"`
	NetBackend       string        `yaml:"netBackend"`
	NetTarget        string        `yaml:"netTarget"`
	Workers          int           `yaml:"workers"`
	RetryLimit       int           `yaml:"retryLimit"`
	OutputMarker     string        `yaml:"outputMarker"`
	Quality          int           `yaml:"quality"`
	GifFPS           float64       `yaml:"gifFPS"`
	GifKeepSourceFPS *bool         `yaml:"gifKeepSourceFPS"`
	SideChecks       SideChecks    `yaml:"sideChecks"`
	FfmpegOptions    FfmpegOptions `yaml:"ffmpegOptions"`

	CopyFileToDestinationOnSkip *bool `yaml:"copyFileToDestinationOnSkip"`
}

type SideChecks struct {
	X2  int `yaml:"x2"`
	X3  int `yaml:"x3"`
	X4  int `yaml:"x4"`
	X8  int `yaml:"x8"`
	GIF int `yaml:"gif"`
}

type FfmpegOptions struct {
	FFmpegBinary      string `yaml:"ffmpegBinary"`
	FFprobeBinary     string `yaml:"ffprobeBinary"`
	HWAccelDecodeFlag string `yaml:"HWAccelDecodeFlag"`
}

const (
	EngineFSRCNN  = "fsrcnn"
	EngineBicubic = "bicubic"
)

// Verify config and set defaults
func verifyConfig(config *Config) error {
	if config == nil {
		return errors.New("cannot verify config, config is nil")
	}

	if config.BindAddress == "" {
		config.BindAddress = "127.0.0.1"
	}

	if config.Port == 0 {
		config.Port = 8080
	}

	if config.DatabasePath == "" {
		config.DatabasePath = "./upscalarr.db"
	}

	if config.LogPath == "" {
		config.LogPath = "./logs"
	}

	if config.ModelDir == "" {
		config.ModelDir = "./models"
	}

	if config.Engine == "" {
		config.Engine = EngineFSRCNN
	}

	if config.Engine != EngineFSRCNN && config.Engine != EngineBicubic {
		return fmt.Errorf("unknown engine %q, expected %s or %s", config.Engine, EngineFSRCNN, EngineBicubic)
	}

	if config.Workers == 0 {
		config.Workers = 1
	}

	if config.Workers < 0 {
		return errors.New("workers can't be negative")
	}

	if config.RetryLimit == 0 {
		config.RetryLimit = 5
	}

	if config.OutputMarker == "" {
		config.OutputMarker = upscale.DefaultMarker
	}

	if config.Quality == 0 {
		config.Quality = 95
	}

	if config.Quality < 1 || config.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", config.Quality)
	}

	if config.GifFPS == 0 {
		config.GifFPS = upscale.DefaultGIFFPS
	}

	if config.GifFPS < 0 {
		return errors.New("gifFPS can't be negative")
	}

	if config.GifKeepSourceFPS == nil {
		defaultVal := false
		config.GifKeepSourceFPS = &defaultVal
	}

	if config.CopyFileToDestinationOnSkip == nil {
		defaultVal := false
		config.CopyFileToDestinationOnSkip = &defaultVal
	}

	defaults := upscale.DefaultOptions().SideChecks
	if config.SideChecks.X2 == 0 {
		config.SideChecks.X2 = defaults.X2
	}

	if config.SideChecks.X3 == 0 {
		config.SideChecks.X3 = defaults.X3
	}

	if config.SideChecks.X4 == 0 {
		config.SideChecks.X4 = defaults.X4
	}

	if config.SideChecks.X8 == 0 {
		config.SideChecks.X8 = defaults.X8
	}

	if config.SideChecks.GIF == 0 {
		config.SideChecks.GIF = defaults.GIF
	}

	return nil
}

// GetConfig reads the yaml file at path, a missing file leaves every
// value to env variables and defaults
func GetConfig(path string) (Config, error) {
	config := Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if err == nil {
		err = yaml.Unmarshal(data, &config)
		if err != nil {
			return Config{}, err
		}
	}

	// Override with env variables if they are passed in
	err = envconfig.ProcessWithOptions("", &config, envconfig.Options{SplitWords: true})
	if err != nil {
		return Config{}, err
	}

	err = verifyConfig(&config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) UpscaleOptions() upscale.Options {
	return upscale.Options{
		Marker:           c.OutputMarker,
		Quality:          c.Quality,
		GIFFPS:           c.GifFPS,
		GIFKeepSourceFPS: c.GifKeepSourceFPS != nil && *c.GifKeepSourceFPS,
		SideChecks: upscale.SideChecks{
			X2:  c.SideChecks.X2,
			X3:  c.SideChecks.X3,
			X4:  c.SideChecks.X4,
			X8:  c.SideChecks.X8,
			GIF: c.SideChecks.GIF,
		},
		FFmpeg: upscale.FFmpegOptions{
			FFmpegBinary:      c.FfmpegOptions.FFmpegBinary,
			FFprobeBinary:     c.FfmpegOptions.FFprobeBinary,
			HWAccelDecodeFlag: c.FfmpegOptions.HWAccelDecodeFlag,
		},
	}
}

func (c *Config) ModelLoader() upscale.ModelLoader {
	if c.Engine == EngineBicubic {
		return upscale.BicubicLoader{}
	}

	return newFSRCNNLoader(c)
}
