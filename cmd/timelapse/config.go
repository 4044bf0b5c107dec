package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/teranos/timelapse"
)

// configFlags maps render flags onto config keys.
var configFlags = map[string]string{
	"folder":               "folderName",
	"output":               "outputPath",
	"obj":                  "saveObj",
	"width":                "width",
	"height":               "height",
	"start":                "start",
	"end":                  "end",
	"frames-per-operation": "framesPerOperation",
	"fit":                  "fitToView",
	"rotate":               "rotate",
	"frames-per-rotation":  "framesPerRotation",
	"final-frames":         "finalFrames",
}

func addConfigFlags(flags *pflag.FlagSet) {
	def := timelapse.DefaultConfig()
	flags.StringP("folder", "f", def.FolderName, "Output folder name")
	flags.StringP("output", "o", def.OutputPath, "Directory the output folder is created in")
	flags.Bool("obj", def.SaveOBJ, "Also save an OBJ mesh per frame")
	flags.Int("width", def.Width, "Image width in pixels")
	flags.Int("height", def.Height, "Image height in pixels")
	flags.Int("start", def.Start, "First timeline position (1-based)")
	flags.Int("end", def.End, "Last timeline position (0 = marker position)")
	flags.Int("frames-per-operation", def.FramesPerOperation, "Frames per animated operation")
	flags.Bool("fit", def.FitToView, "Fit the design to the view before starting")
	flags.Bool("rotate", def.Rotate, "Orbit the camera while rendering")
	flags.Int("frames-per-rotation", def.FramesPerRotation, "Frames for one full orbit")
	flags.Int("final-frames", def.FinalFrames, "Held frames added to the last operation")
}

// loadConfig layers the defaults, the config file and the changed flags.
// With no explicit path a missing timelapse.yaml is not an error.
func loadConfig(path string, flags *pflag.FlagSet) (timelapse.Config, error) {
	v := viper.New()

	def := timelapse.DefaultConfig()
	v.SetDefault("folderName", def.FolderName)
	v.SetDefault("outputPath", def.OutputPath)
	v.SetDefault("saveObj", def.SaveOBJ)
	v.SetDefault("width", def.Width)
	v.SetDefault("height", def.Height)
	v.SetDefault("start", def.Start)
	v.SetDefault("end", def.End)
	v.SetDefault("framesPerOperation", def.FramesPerOperation)
	v.SetDefault("fitToView", def.FitToView)
	v.SetDefault("rotate", def.Rotate)
	v.SetDefault("framesPerRotation", def.FramesPerRotation)
	v.SetDefault("finalFrames", def.FinalFrames)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("timelapse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return timelapse.Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for flag, key := range configFlags {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return timelapse.Config{}, err
				}
			}
		}
	}

	var cfg timelapse.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return timelapse.Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, nil
}
