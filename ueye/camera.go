package ueye

/*
#cgo LDFLAGS: -lueye_api
#include <stdlib.h>
#include <ueye.h>
*/
import "C"
import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unsafe"
)

// imageMem is one SDK-allocated frame buffer
type imageMem struct {
	ptr *C.char
	id  C.int
}

// Camera represents an open uEye camera session.  It is not safe for
// concurrent use; the SDK handle is owned by a single caller.
type Camera struct {
	// Handle holds the HIDS that identifies this camera to the SDK
	Handle C.HIDS

	// bufs are the installed image memories.  The SDK writes frames
	// into these round-robin while continuous capture is running.
	bufs []imageMem

	// width and height are the full sensor dimensions in pixels
	width  int
	height int

	// exposureMs is the last exposure programmed, used to scale the
	// frame wait timeout
	exposureMs float64

	// info is the identity record, read once at Open
	info map[string]string
}

// cstr converts a fixed-size C char array to a Go string, trimming
// NULs and trailing whitespace
func cstr(p unsafe.Pointer, n int) string {
	s := C.GoStringN((*C.char)(p), C.int(n))
	return strings.TrimRight(s, "\x00 ")
}

// Open initializes a session with the first available camera and
// configures it for radiometric use: DIB display mode, raw 8-bit Bayer
// color mode, auto white balance / auto exposure / auto gain disabled,
// and nbufs frame buffers installed.  The original tooling uses a single
// buffer.
func Open(nbufs int) (*Camera, error) {
	if nbufs < 1 {
		nbufs = 1
	}
	c := &Camera{}
	err := enrich(wrap(int(C.is_InitCamera(&c.Handle, nil))), "is_InitCamera")
	if err != nil {
		return nil, err
	}

	var si C.SENSORINFO
	err = enrich(wrap(int(C.is_GetSensorInfo(c.Handle, &si))), "is_GetSensorInfo")
	if err != nil {
		C.is_ExitCamera(c.Handle)
		return nil, err
	}
	c.width = int(si.nMaxWidth)
	c.height = int(si.nMaxHeight)

	var ci C.CAMINFO
	err = enrich(wrap(int(C.is_GetCameraInfo(c.Handle, &ci))), "is_GetCameraInfo")
	if err != nil {
		C.is_ExitCamera(c.Handle)
		return nil, err
	}
	c.info = map[string]string{
		"serial_num":   cstr(unsafe.Pointer(&ci.SerNo[0]), len(ci.SerNo)),
		"manufacturer": cstr(unsafe.Pointer(&ci.ID[0]), len(ci.ID)),
		"hw_version":   cstr(unsafe.Pointer(&ci.Version[0]), len(ci.Version)),
		"date":         cstr(unsafe.Pointer(&ci.Date[0]), len(ci.Date)),
		"device_id":    strconv.Itoa(int(ci.Select)),
		"sensor_name":  cstr(unsafe.Pointer(&si.strSensorName[0]), len(si.strSensorName)),
		"max_width":    strconv.Itoa(c.width),
		"max_height":   strconv.Itoa(c.height),
	}

	err = c.bootup(nbufs)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// bootup applies the fixed session configuration.  Split from Open so the
// error path there stays readable.
func (c *Camera) bootup(nbufs int) error {
	err := enrich(wrap(int(C.is_SetDisplayMode(c.Handle, C.IS_SET_DM_DIB))), "is_SetDisplayMode")
	if err != nil {
		return err
	}
	err = enrich(wrap(int(C.is_SetColorMode(c.Handle, C.IS_CM_SENS_BAYER8))), "is_SetColorMode")
	if err != nil {
		return err
	}

	// kill the auto features; calibration needs the sensor to do
	// exactly what it is told
	var off, zero C.double
	for _, p := range []C.INT{
		C.IS_SET_ENABLE_AUTO_WHITEBALANCE,
		C.IS_SET_ENABLE_AUTO_SHUTTER,
		C.IS_SET_ENABLE_AUTO_GAIN,
	} {
		err = enrich(wrap(int(C.is_SetAutoParameter(c.Handle, p, &off, &zero))), "is_SetAutoParameter")
		if err != nil {
			return err
		}
	}

	for i := 0; i < nbufs; i++ {
		var m imageMem
		err = enrich(wrap(int(C.is_AllocImageMem(c.Handle,
			C.INT(c.width), C.INT(c.height), 8, &m.ptr, &m.id))), "is_AllocImageMem")
		if err != nil {
			return err
		}
		c.bufs = append(c.bufs, m)
		err = enrich(wrap(int(C.is_AddToSequence(c.Handle, m.ptr, m.id))), "is_AddToSequence")
		if err != nil {
			return err
		}
	}

	return enrich(wrap(int(C.is_EnableEvent(c.Handle, C.IS_SET_EVENT_FRAME))), "is_EnableEvent")
}

// Close releases the image memory and the SDK session
func (c *Camera) Close() error {
	C.is_DisableEvent(c.Handle, C.IS_SET_EVENT_FRAME)
	C.is_ClearSequence(c.Handle)
	for _, m := range c.bufs {
		C.is_FreeImageMem(c.Handle, m.ptr, m.id)
	}
	c.bufs = nil
	return enrich(wrap(int(C.is_ExitCamera(c.Handle))), "is_ExitCamera")
}

// Info returns the camera identity record.  The map is a copy.
func (c *Camera) Info() (map[string]string, error) {
	out := make(map[string]string, len(c.info))
	for k, v := range c.info {
		out[k] = v
	}
	return out, nil
}

// PixelClockRange returns the supported pixel clock range in MHz
func (c *Camera) PixelClockRange() (int, int, error) {
	var rng [3]C.UINT // min, max, increment
	err := wrap(int(C.is_PixelClock(c.Handle, C.IS_PIXELCLOCK_CMD_GET_RANGE,
		unsafe.Pointer(&rng[0]), C.UINT(unsafe.Sizeof(rng)))))
	if err != nil {
		return 0, 0, enrich(err, "is_PixelClock GET_RANGE")
	}
	return int(rng[0]), int(rng[1]), nil
}

// SetPixelClock sets the pixel clock in MHz.  Changing the clock
// invalidates the programmed frame rate and exposure; set those after.
func (c *Camera) SetPixelClock(mhz int) error {
	clk := C.UINT(mhz)
	err := wrap(int(C.is_PixelClock(c.Handle, C.IS_PIXELCLOCK_CMD_SET,
		unsafe.Pointer(&clk), C.UINT(unsafe.Sizeof(clk)))))
	return enrich(err, "is_PixelClock SET")
}

// SetFrameRate sets the frame rate in fps and returns the rate the
// hardware actually settled on
func (c *Camera) SetFrameRate(fps float64) (float64, error) {
	var actual C.double
	err := wrap(int(C.is_SetFrameRate(c.Handle, C.double(fps), &actual)))
	return float64(actual), enrich(err, "is_SetFrameRate")
}

// SetExposure sets the exposure time in milliseconds.  The hardware
// quantizes to the nearest line period; read Exposure for the value in use.
func (c *Camera) SetExposure(ms float64) error {
	v := C.double(ms)
	err := wrap(int(C.is_Exposure(c.Handle, C.IS_EXPOSURE_CMD_SET_EXPOSURE,
		unsafe.Pointer(&v), C.UINT(unsafe.Sizeof(v)))))
	if err == nil {
		c.exposureMs = float64(v)
	}
	return enrich(err, "is_Exposure SET")
}

// Exposure returns the exposure time currently in use, in milliseconds
func (c *Camera) Exposure() (float64, error) {
	var v C.double
	err := wrap(int(C.is_Exposure(c.Handle, C.IS_EXPOSURE_CMD_GET_EXPOSURE,
		unsafe.Pointer(&v), C.UINT(unsafe.Sizeof(v)))))
	return float64(v), enrich(err, "is_Exposure GET")
}

// SetGain sets the master gain, 0-100
func (c *Camera) SetGain(gain int) error {
	ret := int(C.is_SetHardwareGain(c.Handle, C.INT(gain),
		C.IS_IGNORE_PARAMETER, C.IS_IGNORE_PARAMETER, C.IS_IGNORE_PARAMETER))
	return enrich(wrap(ret), "is_SetHardwareGain")
}

// Gain returns the master gain currently applied, 0-100
func (c *Camera) Gain() (int, error) {
	// the get variants of is_SetHardwareGain return the value, not a status
	ret := int(C.is_SetHardwareGain(c.Handle, C.IS_GET_MASTER_GAIN,
		C.IS_IGNORE_PARAMETER, C.IS_IGNORE_PARAMETER, C.IS_IGNORE_PARAMETER))
	if ret < 0 {
		return 0, enrich(wrap(ret), "is_SetHardwareGain GET")
	}
	return ret, nil
}

// SetGainBoost turns the analog gain boost on or off
func (c *Camera) SetGainBoost(on bool) error {
	mode := C.INT(C.IS_SET_GAINBOOST_OFF)
	if on {
		mode = C.IS_SET_GAINBOOST_ON
	}
	return enrich(wrap(int(C.is_SetGainBoost(c.Handle, mode))), "is_SetGainBoost")
}

// StartCapture enables continuous (live) capture.  Frames become
// available to NextFrame until StopCapture is called.
func (c *Camera) StartCapture() error {
	return enrich(wrap(int(C.is_CaptureVideo(c.Handle, C.IS_DONT_WAIT))), "is_CaptureVideo")
}

// StopCapture disables continuous capture
func (c *Camera) StopCapture() error {
	return enrich(wrap(int(C.is_StopLiveVideo(c.Handle, C.IS_FORCE_VIDEO_STOP))), "is_StopLiveVideo")
}

// NextFrame blocks until the camera produces a frame, then copies it out
// of the most recently filled image memory.  The returned slice is densely
// packed (the SDK's line pitch is stripped) and freshly allocated on each
// call.  The wait timeout scales with the programmed exposure.
func (c *Camera) NextFrame() ([]byte, int, int, error) {
	tout := DefaultTimeoutMs + int(c.exposureMs)
	err := wrap(int(C.is_WaitEvent(c.Handle, C.IS_SET_EVENT_FRAME, C.INT(tout))))
	if err != nil {
		return nil, 0, 0, enrich(err, "is_WaitEvent")
	}

	var (
		num  C.INT
		cur  *C.char
		last *C.char
	)
	err = wrap(int(C.is_GetActSeqBuf(c.Handle, &num, &cur, &last)))
	if err != nil {
		return nil, 0, 0, enrich(err, "is_GetActSeqBuf")
	}

	var pitch C.INT
	err = wrap(int(C.is_GetImageMemPitch(c.Handle, &pitch)))
	if err != nil {
		return nil, 0, 0, enrich(err, "is_GetImageMemPitch")
	}

	// lock the buffer so live capture cannot overwrite it mid-copy
	id := c.bufID(last)
	if id < 0 {
		return nil, 0, 0, fmt.Errorf("uEye: sequence buffer %p not one of ours", last)
	}
	C.is_LockSeqBuf(c.Handle, C.INT(id), last)
	defer C.is_UnlockSeqBuf(c.Handle, C.INT(id), last)

	raw := C.GoBytes(unsafe.Pointer(last), C.int(int(pitch)*c.height))
	pix := unpad(raw, int(pitch), c.width, c.height)
	return pix, c.width, c.height, nil
}

// bufID maps an SDK buffer pointer back to its memory id
func (c *Camera) bufID(p *C.char) int {
	for _, m := range c.bufs {
		if m.ptr == p {
			return int(m.id)
		}
	}
	return -1
}

// unpad strips the line pitch from a raw 8-bit buffer
func unpad(raw []byte, pitch, width, height int) []byte {
	if pitch == width {
		return raw[:width*height]
	}
	out := make([]byte, 0, width*height)
	bidx := 0
	for row := 0; row < height; row++ {
		out = append(out, raw[bidx:bidx+width]...)
		bidx += pitch
	}
	return out
}

// WaitTimeout is exposed for diagnostics: the frame wait deadline for the
// current exposure setting
func (c *Camera) WaitTimeout() time.Duration {
	return time.Duration(DefaultTimeoutMs+int(c.exposureMs)) * time.Millisecond
}
