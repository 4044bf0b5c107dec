package timelapse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the parameters of one run. It is read once when the run
// starts and never changed by it.
type Config struct {
	// FolderName is created under OutputPath and receives every artifact.
	FolderName string `mapstructure:"folderName" json:"folder_name"`
	OutputPath string `mapstructure:"outputPath" json:"output_path"`
	SaveOBJ    bool   `mapstructure:"saveObj" json:"save_obj"`

	// Image size in pixels
	Width  int `mapstructure:"width" json:"width"`
	Height int `mapstructure:"height" json:"height"`

	// Start and End are 1-based timeline positions, both included.
	Start int `mapstructure:"start" json:"start"`
	End   int `mapstructure:"end" json:"end"`

	FramesPerOperation int  `mapstructure:"framesPerOperation" json:"frames_per_operation"`
	FitToView          bool `mapstructure:"fitToView" json:"fit_to_view"`
	Rotate             bool `mapstructure:"rotate" json:"rotate"`
	FramesPerRotation  int  `mapstructure:"framesPerRotation" json:"frames_per_rotation"`
	// FinalFrames extends the last operation of the range with held frames.
	FinalFrames int `mapstructure:"finalFrames" json:"final_frames"`
}

// DefaultConfig returns the settings a fresh run starts from. End is left
// at zero, meaning "the timeline's current marker position".
func DefaultConfig() Config {
	out := "."
	if home, err := os.UserHomeDir(); err == nil {
		out = filepath.Join(home, "Desktop")
	}
	return Config{
		FolderName:         "timelapse",
		OutputPath:         out,
		SaveOBJ:            false,
		Width:              2000,
		Height:             2000,
		Start:              1,
		End:                0,
		FramesPerOperation: 5,
		FitToView:          false,
		Rotate:             true,
		FramesPerRotation:  500,
		FinalFrames:        0,
	}
}

// OutputDir is the folder frames and the log are written to.
func (c Config) OutputDir() string {
	return filepath.Join(c.OutputPath, c.FolderName)
}

// EffectiveFramesPerRotation is zero when rotation is off.
func (c Config) EffectiveFramesPerRotation() int {
	if !c.Rotate {
		return 0
	}
	return c.FramesPerRotation
}

// Normalize fills End from the marker position when unset and clamps
// FinalFrames to zero.
func (c Config) Normalize(markerPosition int) Config {
	if c.End == 0 {
		c.End = markerPosition
	}
	if c.FinalFrames < 0 {
		c.FinalFrames = 0
	}
	return c
}

// Validate checks the config against a timeline of count operations.
func (c Config) Validate(count int) error {
	var errs []error
	if c.OutputPath == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if c.Width < 1 || c.Height < 1 {
		errs = append(errs, fmt.Errorf("image size %dx%d must be at least 1x1", c.Width, c.Height))
	}
	if c.FramesPerOperation < 1 {
		errs = append(errs, fmt.Errorf("frames per operation %d must be at least 1", c.FramesPerOperation))
	}
	if c.Rotate && c.FramesPerRotation < 1 {
		errs = append(errs, fmt.Errorf("frames per rotation %d must be at least 1 when rotating", c.FramesPerRotation))
	}
	if c.Start < 1 || c.End < c.Start || c.End > count {
		errs = append(errs, fmt.Errorf("range [%d, %d] is outside timeline 1..%d", c.Start, c.End, count))
	}
	return errors.Join(errs...)
}
