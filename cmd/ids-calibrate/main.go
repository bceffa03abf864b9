package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/amitibo/ids/calib"
	"github.com/amitibo/ids/ueye"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "ids-calibrate.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(calib.DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `ids-calibrate sweeps a uEye camera over a grid of exposure and
gain settings for radiometric calibration.  Each sweep point is captured,
averaged, and saved under results/<serial_number>/ together with the
camera info record.

Usage:
	ids-calibrate <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `ids-calibrate is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used; they reproduce the
historical calibration runs: exposures from 100 us to 8 s, gains 0-100 in
steps of 20, gain boost both off and on, 10 frames averaged per point.
The command mkconf generates the configuration file with the default values.

Exposures are microseconds.  Format selects the artifact container, mat
(the default) or fits.  Averaging fewer than 1 frame is rejected.

The saved exposure and gain are the values the hardware actually used,
which differ from the requested ones because the sensor quantizes both.`
	fmt.Println(str)
}

func mkconf() {
	c := calib.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := calib.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("ids-calibrate version %v\n", Version)
}

func run() {
	cfg := calib.Config{}
	k.Unmarshal("", &cfg)

	spin, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " connecting to camera",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
		SuffixAutoColon: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	spin.Start()
	cam, err := ueye.Open(cfg.Buffers)
	if err != nil {
		spin.StopFail()
		log.Fatal(err)
	}
	info, _ := cam.Info()
	spin.StopMessage(fmt.Sprintf("connected to %s s/n %s", info["sensor_name"], info["serial_num"]))
	spin.Stop()
	defer cam.Close()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	err = calib.Run(cam, cfg, logger)
	if err != nil {
		cam.Close()
		log.Fatal(err)
	}
	logger.Println("sweep complete")
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
