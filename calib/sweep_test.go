package calib

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func sweepConfig(root string) Config {
	cfg := DefaultConfig()
	cfg.Root = root
	cfg.Exposures = []int{100, 1000}
	cfg.Gains = []int{0, 20}
	cfg.BoostModes = []bool{false}
	cfg.Average = 1
	cfg.Preview = false
	return cfg
}

func TestSweepProducesNamedArtifacts(t *testing.T) {
	drv := newFakeDriver()
	root := t.TempDir()
	err := Run(drv, sweepConfig(root), nil)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(root, "4102885308")
	want := []string{
		"exp_0000100_gain_000_boost_False.mat",
		"exp_0000100_gain_020_boost_False.mat",
		"exp_0001000_gain_000_boost_False.mat",
		"exp_0001000_gain_020_boost_False.mat",
		"info.json",
	}
	for _, name := range want {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
			continue
		}
		if fi.Size() == 0 {
			t.Errorf("artifact %s is empty", name)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(want) {
		t.Errorf("expected exactly %d files, found %d", len(want), len(entries))
	}
}

func TestSweepInfoRecord(t *testing.T) {
	drv := newFakeDriver()
	root := t.TempDir()
	err := Run(drv, sweepConfig(root), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(root, "4102885308", "info.json"))
	if err != nil {
		t.Fatal(err)
	}
	info := map[string]string{}
	err = json.Unmarshal(b, &info)
	if err != nil {
		t.Fatal(err)
	}
	if info["serial_num"] != "4102885308" {
		t.Errorf("expected serial_num 4102885308 in info.json, got %q", info["serial_num"])
	}
	if info["sensor_name"] != "UI124xSE-M" {
		t.Errorf("expected sensor_name UI124xSE-M in info.json, got %q", info["sensor_name"])
	}
}

func TestSweepMATArtifactHeader(t *testing.T) {
	drv := newFakeDriver()
	root := t.TempDir()
	err := Run(drv, sweepConfig(root), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(root, "4102885308", "exp_0000100_gain_000_boost_False.mat"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("MATLAB 5.0 MAT-file")) {
		t.Error("artifact does not start with the MAT header text")
	}
	if b[126] != 'I' || b[127] != 'M' {
		t.Errorf("expected little-endian indicator IM, got %c%c", b[126], b[127])
	}
}

func TestSweepFITSFormat(t *testing.T) {
	drv := newFakeDriver()
	root := t.TempDir()
	cfg := sweepConfig(root)
	cfg.Format = "fits"
	cfg.Exposures = []int{100}
	cfg.Gains = []int{0}
	err := Run(drv, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(root, "4102885308", "exp_0000100_gain_000_boost_False.fits"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("SIMPLE")) {
		t.Error("artifact does not look like a FITS file")
	}
}

func TestSweepUnknownFormatRejected(t *testing.T) {
	drv := newFakeDriver()
	cfg := sweepConfig(t.TempDir())
	cfg.Format = "hdf5"
	err := Run(drv, cfg, nil)
	if err == nil {
		t.Fatal("expected unknown format to error")
	}
}

func TestSweepPreviewWritten(t *testing.T) {
	drv := newFakeDriver()
	root := t.TempDir()
	cfg := sweepConfig(root)
	cfg.Preview = true
	err := Run(drv, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(root, "4102885308", "preview.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Error("preview.png is not a PNG")
	}
}

func TestSweepRequiresSerialNumber(t *testing.T) {
	drv := newFakeDriver()
	drv.info = map[string]string{"sensor_name": "UI124xSE-M"}
	err := Run(drv, sweepConfig(t.TempDir()), nil)
	if err == nil {
		t.Fatal("expected missing serial_num to error")
	}
}

func TestSweepAbortsOnCaptureFailure(t *testing.T) {
	drv := newFakeDriver()
	drv.failPullAt = 3 // first point succeeds, second dies on its warm-up
	root := t.TempDir()
	cfg := sweepConfig(root)
	err := Run(drv, cfg, nil)
	if err == nil {
		t.Fatal("expected sweep to abort on capture failure")
	}
	// the artifact written before the failure stays on disk
	_, statErr := os.Stat(filepath.Join(root, "4102885308", "exp_0000100_gain_000_boost_False.mat"))
	if statErr != nil {
		t.Errorf("expected earlier artifact to remain: %v", statErr)
	}
}
