package calib

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/amitibo/ids/matfile"
)

// Config holds the sweep grid and output options.  Field names double as
// the keys of the CLI's YAML config.
type Config struct {
	// Root is the output directory; artifacts land in Root/<serial_num>/
	Root string `yaml:"Root"`

	// Format selects the artifact container, "mat" or "fits"
	Format string `yaml:"Format"`

	// Average is how many frames to average per sweep point
	Average int `yaml:"Average"`

	// Exposures are the requested exposure periods in microseconds
	Exposures []int `yaml:"Exposures"`

	// Gains are the requested master gains, 0-100
	Gains []int `yaml:"Gains"`

	// BoostModes are the gain boost settings to sweep, usually
	// (false, true)
	BoostModes []bool `yaml:"BoostModes"`

	// MaxPixelClock is Policy.MaxPixelClock, MHz
	MaxPixelClock int `yaml:"MaxPixelClock"`

	// LongExposureCutoffUS is Policy.LongExposureCutoffUS
	LongExposureCutoffUS int `yaml:"LongExposureCutoffUS"`

	// MaxFrameRate is Policy.MaxFrameRate, fps
	MaxFrameRate float64 `yaml:"MaxFrameRate"`

	// Buffers is how many frame buffers the session installs
	Buffers int `yaml:"Buffers"`

	// Preview controls writing preview.png of the last captured image
	Preview bool `yaml:"Preview"`
}

// DefaultConfig reproduces the constants of the original calibration runs
func DefaultConfig() Config {
	pol := DefaultPolicy()
	return Config{
		Root:                 "results",
		Format:               "mat",
		Average:              10,
		Exposures:            []int{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000, 8000000},
		Gains:                []int{0, 20, 40, 60, 80, 100},
		BoostModes:           []bool{false, true},
		MaxPixelClock:        pol.MaxPixelClock,
		LongExposureCutoffUS: pol.LongExposureCutoffUS,
		MaxFrameRate:         pol.MaxFrameRate,
		Buffers:              1,
		Preview:              true,
	}
}

// Policy extracts the acquisition policy from the config
func (cfg Config) Policy() Policy {
	return Policy{
		MaxPixelClock:        cfg.MaxPixelClock,
		LongExposureCutoffUS: cfg.LongExposureCutoffUS,
		MaxFrameRate:         cfg.MaxFrameRate,
	}
}

// BaseName encodes a sweep point into its artifact name, without
// extension.  The True/False capitalization is load-bearing: analysis
// tooling downstream globs on these exact names.
func BaseName(exposureUS, gain int, boost bool) string {
	b := "False"
	if boost {
		b = "True"
	}
	return fmt.Sprintf("exp_%07d_gain_%03d_boost_%s", exposureUS, gain, b)
}

// Run executes the full sweep against drv: write the camera info record,
// then capture and persist one artifact per (boost, gain, exposure) point.
// Any error aborts the sweep; artifacts already written remain on disk.
// A nil logger silences progress output.
func Run(drv Driver, cfg Config, logger *log.Logger) error {
	cal := New(drv, cfg.Policy(), logger)

	info, err := drv.Info()
	if err != nil {
		return err
	}
	serial, ok := info["serial_num"]
	if !ok || serial == "" {
		return fmt.Errorf("calib: camera info has no serial_num, cannot name output directory")
	}

	dir := filepath.Join(cfg.Root, serial)
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}
	err = writeInfo(filepath.Join(dir, "info.json"), info)
	if err != nil {
		return err
	}

	var last Image
	for _, boost := range cfg.BoostModes {
		for _, gain := range cfg.Gains {
			for _, exposure := range cfg.Exposures {
				base := BaseName(exposure, gain, boost)
				cal.log.Println(base)
				res, err := cal.Capture(Request{
					ExposureUS: exposure,
					Gain:       gain,
					GainBoost:  boost,
					Average:    cfg.Average,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", base, err)
				}
				err = writeArtifact(dir, base, cfg.Format, res)
				if err != nil {
					return fmt.Errorf("%s: %w", base, err)
				}
				last = res.Image
			}
		}
	}

	if cfg.Preview && last.Pix != nil {
		err = writePreview(filepath.Join(dir, "preview.png"), last)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeInfo serializes the camera info record as a flat JSON object
func writeInfo(path string, info map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(info)
}

// writeArtifact persists one capture result under dir
func writeArtifact(dir, base, format string, res Result) error {
	switch format {
	case "", "mat":
		return writeMAT(filepath.Join(dir, base+".mat"), res)
	case "fits":
		return writeFITSFile(filepath.Join(dir, base+".fits"), res)
	default:
		return fmt.Errorf("calib: unknown artifact format %q", format)
	}
}

// writeMAT stores the image and the actual exposure/gain as MAT variables
// array, exposure, gain
func writeMAT(path string, res Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := matfile.NewWriter(f)
	if err != nil {
		return err
	}
	err = w.PutMatrix("array", res.Image.Pix, res.Image.Height, res.Image.Width)
	if err != nil {
		return err
	}
	err = w.PutScalar("exposure", res.ExposureUS)
	if err != nil {
		return err
	}
	return w.PutInt32("gain", int32(res.Gain))
}

// writePreview renders the stretched 8-bit quick-look of img
func writePreview(path string, img Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return img.WritePNG(f)
}
