/*Package ueye exposes control of IDS uEye cameras in Go via the uEye SDK.

The wrapper covers the subset of the API needed for radiometric work:
session setup in raw 8-bit Bayer mode, pixel clock / frame rate / exposure /
gain programming, continuous capture, and blocking frame retrieval.
*/
package ueye

import "fmt"

// DefaultTimeoutMs is how long NextFrame waits for the frame event before
// giving up, in milliseconds, in addition to the programmed exposure time.
const DefaultTimeoutMs = 5000

// Error is a uEye SDK status code other than IS_SUCCESS.
type Error int

// codes from ueye.h; only the ones commonly seen in practice are named,
// anything else renders numerically.
var errStrings = map[int]string{
	-1:  "general error (IS_NO_SUCCESS)",
	1:   "invalid camera handle",
	2:   "IO request failed",
	3:   "cannot open device",
	11:  "invalid capture mode",
	15:  "out of memory",
	108: "invalid parameter",
	112: "invalid pixel clock",
	113: "invalid exposure time",
	122: "timed out waiting for image",
	125: "invalid buffer size",
	127: "capture running",
	140: "invalid color format",
	173: "device busy",
	178: "invalid mode",
}

// Error satisfies the error interface
func (e Error) Error() string {
	if s, ok := errStrings[int(e)]; ok {
		return fmt.Sprintf("uEye: %d - %s", int(e), s)
	}
	return fmt.Sprintf("uEye: unknown error code %d", int(e))
}

// wrap converts an SDK return value to an error, nil on IS_SUCCESS
func wrap(code int) error {
	if code == 0 {
		return nil
	}
	return Error(code)
}

// enrich adds context to an SDK error, identifying the offending call
func enrich(err error, call string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", call, err)
}
