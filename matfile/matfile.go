/*Package matfile writes Level 5 MAT-files.

Only the subset needed to persist calibration artifacts is implemented:
uncompressed 2-D double matrices and double/int32 scalars.  Data is
little-endian, full-tag elements only.  The files read back cleanly with
MATLAB and scipy.io.loadmat.
*/
package matfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// MAT-file data types and array classes, from the Level 5 file format
const (
	miINT8   = 1
	miINT32  = 5
	miUINT32 = 6
	miDOUBLE = 9
	miMATRIX = 14

	mxDOUBLE = 6
	mxINT32  = 12
)

// headerLen is the fixed MAT header size in bytes
const headerLen = 128

// Writer streams MAT elements to an io.Writer
type Writer struct {
	w io.Writer
}

// NewWriter writes the 128-byte MAT header to w and returns a Writer.
// The header carries a creation timestamp, so output is not
// byte-reproducible across runs.
func NewWriter(w io.Writer) (*Writer, error) {
	hdr := make([]byte, headerLen)
	for i := range hdr[:116] {
		hdr[i] = ' '
	}
	desc := fmt.Sprintf("MATLAB 5.0 MAT-file, Created by: ids on %s",
		time.Now().Format("Mon Jan 02 15:04:05 2006"))
	copy(hdr[:116], desc)
	// bytes 116:124 are the subsystem data offset, zero when unused
	binary.LittleEndian.PutUint16(hdr[124:126], 0x0100) // version
	hdr[126] = 'I'                                      // endian indicator
	hdr[127] = 'M'
	_, err := w.Write(hdr)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// PutMatrix writes a rows x cols double matrix named name.  Data is given
// in row-major order (the natural order of a strided frame) and is written
// column-major as the format requires.
func (m *Writer) PutMatrix(name string, data []float64, rows, cols int) error {
	if len(data) != rows*cols {
		return fmt.Errorf("matfile: %d values do not fill a %dx%d matrix", len(data), rows, cols)
	}
	real := make([]byte, 0, len(data)*8)
	var scratch [8]byte
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			bits := math.Float64bits(data[r*cols+c])
			binary.LittleEndian.PutUint64(scratch[:], bits)
			real = append(real, scratch[:]...)
		}
	}
	return m.putArray(name, mxDOUBLE, miDOUBLE, rows, cols, real)
}

// PutScalar writes a 1x1 double named name
func (m *Writer) PutScalar(name string, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return m.putArray(name, mxDOUBLE, miDOUBLE, 1, 1, buf[:])
}

// PutInt32 writes a 1x1 int32 named name
func (m *Writer) PutInt32(name string, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return m.putArray(name, mxINT32, miINT32, 1, 1, buf[:])
}

// putArray assembles and writes one miMATRIX element
func (m *Writer) putArray(name string, class, dtype, rows, cols int, real []byte) error {
	namePad := pad8(len(name))
	realPad := pad8(len(real))

	// array flags + dims + name + real part, each with its 8-byte tag
	total := (8 + 8) + (8 + 8) + (8 + len(name) + namePad) + (8 + len(real) + realPad)

	buf := make([]byte, 0, 8+total)
	buf = appendTag(buf, miMATRIX, total)

	// array flags: class in the low byte, no complex/global/logical flags
	buf = appendTag(buf, miUINT32, 8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(class))
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	// dimensions
	buf = appendTag(buf, miINT32, 8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rows))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(cols))

	// name
	buf = appendTag(buf, miINT8, len(name))
	buf = append(buf, name...)
	buf = append(buf, make([]byte, namePad)...)

	// real part
	buf = appendTag(buf, dtype, len(real))
	buf = append(buf, real...)
	buf = append(buf, make([]byte, realPad)...)

	_, err := m.w.Write(buf)
	return err
}

// appendTag appends a full 8-byte element tag
func appendTag(buf []byte, dtype, nbytes int) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dtype))
	return binary.LittleEndian.AppendUint32(buf, uint32(nbytes))
}

// pad8 returns how many zero bytes bring n to an 8-byte boundary
func pad8(n int) int {
	r := n % 8
	if r == 0 {
		return 0
	}
	return 8 - r
}
