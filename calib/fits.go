package calib

import (
	"io"
	"os"

	"github.com/astrogo/fitsio"
)

// WriteFITS streams a capture result to w as a single-HDU FITS file with
// a 64-bit float image and the actual exposure/gain in the header
func WriteFITS(w io.Writer, res Result) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{res.Image.Width, res.Image.Height})
	defer im.Close()
	cards := []fitsio.Card{
		{Name: "EXPTIME", Value: res.ExposureUS, Comment: "actual exposure time, microseconds"},
		{Name: "GAIN", Value: res.Gain, Comment: "actual master gain, 0-100"},
	}
	err = im.Header().Append(cards...)
	if err != nil {
		return err
	}
	err = im.Write(res.Image.Pix)
	if err != nil {
		return err
	}
	return fits.Write(im)
}

// writeFITSFile is the file-backed variant used by the sweep
func writeFITSFile(path string, res Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteFITS(f, res)
}
