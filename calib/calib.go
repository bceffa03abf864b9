/*Package calib contains the radiometric calibration sweep for uEye cameras.

The sweep logic is written against the Driver interface rather than the cgo
binding so it can be exercised with a fake camera; *ueye.Camera satisfies
Driver implicitly.
*/
package calib

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
)

// ErrBadAverage is returned by Capture for Average < 1.  The behavior of
// averaging zero frames is deliberately not defined.
var ErrBadAverage = errors.New("calib: Average must be >= 1")

// Driver is the camera boundary needed by the sweep.  All methods block
// until the hardware has acted.
type Driver interface {
	// Info returns the flat identity record of the camera.  It must
	// contain a serial_num key.
	Info() (map[string]string, error)

	// PixelClockRange returns the supported pixel clock bounds in MHz
	PixelClockRange() (min, max int, err error)

	// SetPixelClock sets the pixel clock in MHz
	SetPixelClock(mhz int) error

	// SetFrameRate sets the frame rate in fps, returning the rate the
	// hardware settled on
	SetFrameRate(fps float64) (float64, error)

	// SetExposure sets the exposure time in milliseconds
	SetExposure(ms float64) error

	// Exposure returns the exposure time in use, in milliseconds.  The
	// hardware quantizes, so this may differ from the requested value.
	Exposure() (float64, error)

	// SetGain sets the master gain, 0-100
	SetGain(gain int) error

	// Gain returns the master gain in use
	Gain() (int, error)

	// SetGainBoost turns the analog gain boost on or off
	SetGainBoost(on bool) error

	// StartCapture enables continuous capture
	StartCapture() error

	// StopCapture disables continuous capture
	StopCapture() error

	// NextFrame blocks until a frame is available and returns its
	// densely packed 8-bit pixels and dimensions
	NextFrame() (pix []byte, width, height int, err error)
}

// Policy holds the parameter-dependent acquisition constants.  The pixel
// clock values are empiric: long exposures are only reachable at the
// minimum clock, short ones want the maximum usable clock.
type Policy struct {
	// MaxPixelClock is the clock used for short exposures, in MHz
	MaxPixelClock int

	// LongExposureCutoffUS is the exposure above which the driver's
	// minimum pixel clock is selected instead, in microseconds
	LongExposureCutoffUS int

	// MaxFrameRate caps the requested frame rate, in fps
	MaxFrameRate float64
}

// DefaultPolicy returns the policy the original calibration runs used
func DefaultPolicy() Policy {
	return Policy{
		MaxPixelClock:        30,
		LongExposureCutoffUS: 1000,
		MaxFrameRate:         100,
	}
}

// Request describes one capture
type Request struct {
	// ExposureUS is the requested exposure period in microseconds
	ExposureUS int

	// Gain is the requested master gain, 0-100
	Gain int

	// GainBoost selects the analog gain boost
	GainBoost bool

	// Average is how many frames to pull and average, not counting the
	// discarded warm-up frame.  Must be >= 1.
	Average int
}

// Result is a finished capture
type Result struct {
	// Image is the arithmetic mean of the captured frames
	Image Image

	// ExposureUS is the exposure the hardware actually used, in
	// microseconds.  Not the requested value.
	ExposureUS float64

	// Gain is the master gain the hardware actually applied
	Gain int
}

// Calibrator runs captures against a driver with a fixed policy
type Calibrator struct {
	drv Driver
	pol Policy
	log *log.Logger
}

// New returns a Calibrator.  A nil logger discards progress output.
func New(drv Driver, pol Policy, logger *log.Logger) *Calibrator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Calibrator{drv: drv, pol: pol, log: logger}
}

// Capture configures the device for the request and acquires the averaged
// frame.  Configuration order matters and is fixed: pixel clock, frame
// rate, exposure, gain, gain boost.  The first frame after enabling
// capture is discarded as warm-up; capture is always disabled on the way
// out, including when a frame pull fails.
//
// The returned exposure and gain are read back from the device after
// configuration, since the hardware quantizes both.
func (c *Calibrator) Capture(req Request) (Result, error) {
	var res Result
	if req.Average < 1 {
		return res, ErrBadAverage
	}

	if req.ExposureUS > c.pol.LongExposureCutoffUS {
		// minimum clock to make the long exposure reachable
		min, _, err := c.drv.PixelClockRange()
		if err != nil {
			return res, err
		}
		c.log.Printf("setting pixel clock to %d MHz (driver minimum)", min)
		err = c.drv.SetPixelClock(min)
		if err != nil {
			return res, err
		}
	} else {
		c.log.Printf("setting pixel clock to %d MHz", c.pol.MaxPixelClock)
		err := c.drv.SetPixelClock(c.pol.MaxPixelClock)
		if err != nil {
			return res, err
		}
	}

	// don't ask for a frame rate the exposure cannot sustain
	fps := math.Min(c.pol.MaxFrameRate, 1e6/float64(req.ExposureUS))
	_, err := c.drv.SetFrameRate(fps)
	if err != nil {
		return res, err
	}

	err = c.drv.SetExposure(float64(req.ExposureUS) * 1e-3)
	if err != nil {
		return res, err
	}
	err = c.drv.SetGain(req.Gain)
	if err != nil {
		return res, err
	}
	err = c.drv.SetGainBoost(req.GainBoost)
	if err != nil {
		return res, err
	}

	img, err := c.acquire(req.Average)
	if err != nil {
		return res, err
	}

	expMs, err := c.drv.Exposure()
	if err != nil {
		return res, err
	}
	gain, err := c.drv.Gain()
	if err != nil {
		return res, err
	}

	res.Image = img
	res.ExposureUS = expMs * 1e3
	res.Gain = gain
	return res, nil
}

// acquire runs the capture-enabled section: warm-up discard, n pulls,
// mean reduction.  StopCapture runs exactly once regardless of outcome.
func (c *Calibrator) acquire(n int) (Image, error) {
	var img Image
	err := c.drv.StartCapture()
	if err != nil {
		return img, err
	}

	pullErr := func() error {
		// warm-up frame may reflect pre-configuration sensor state
		_, _, _, err := c.drv.NextFrame()
		if err != nil {
			return fmt.Errorf("warm-up frame: %w", err)
		}
		for i := 0; i < n; i++ {
			pix, w, h, err := c.drv.NextFrame()
			if err != nil {
				return fmt.Errorf("frame %d of %d: %w", i+1, n, err)
			}
			err = img.accumulate(pix, w, h)
			if err != nil {
				return err
			}
		}
		return nil
	}()

	stopErr := c.drv.StopCapture()
	if pullErr != nil {
		return img, pullErr
	}
	if stopErr != nil {
		return img, stopErr
	}

	img.scale(1 / float64(n))
	return img, nil
}
