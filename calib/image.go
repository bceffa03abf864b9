package calib

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// Image is a monochrome frame (or average of frames) in row-major order.
// Pixels are float64 because an average of 8-bit frames is not integral.
type Image struct {
	// Pix holds the pixels, strided by Width
	Pix []float64

	// Width is the frame width in pixels
	Width int

	// Height is the frame height in pixels
	Height int
}

// At returns the pixel at column x, row y
func (im Image) At(x, y int) float64 {
	return im.Pix[y*im.Width+x]
}

// accumulate adds an 8-bit frame into the running sum, initializing the
// image on first use.  Frames must agree on dimensions.
func (im *Image) accumulate(pix []byte, width, height int) error {
	if im.Pix == nil {
		im.Pix = make([]float64, width*height)
		im.Width = width
		im.Height = height
	}
	if width != im.Width || height != im.Height {
		return fmt.Errorf("calib: frame dimensions %dx%d do not match accumulator %dx%d",
			width, height, im.Width, im.Height)
	}
	if len(pix) != len(im.Pix) {
		return fmt.Errorf("calib: frame has %d pixels, want %d", len(pix), len(im.Pix))
	}
	for i, p := range pix {
		im.Pix[i] += float64(p)
	}
	return nil
}

// scale multiplies every pixel by f
func (im *Image) scale(f float64) {
	for i := range im.Pix {
		im.Pix[i] *= f
	}
}

// Gray renders the image to 8 bits with a min/max contrast stretch, for
// quick-look previews.  A flat image renders black.
func (im Image) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	if len(im.Pix) == 0 {
		return g
	}
	lo, hi := im.Pix[0], im.Pix[0]
	for _, p := range im.Pix {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	span := hi - lo
	if span == 0 {
		return g
	}
	for i, p := range im.Pix {
		g.Pix[i] = uint8((p - lo) / span * 255)
	}
	return g
}

// WritePNG writes the stretched preview rendering to w
func (im Image) WritePNG(w io.Writer) error {
	return png.Encode(w, im.Gray())
}
