package matfile

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// readTag reads one element tag at off and returns (dtype, nbytes)
func readTag(t *testing.T, b []byte, off int) (int, int) {
	t.Helper()
	if off+8 > len(b) {
		t.Fatalf("tag at %d runs past end of buffer (len %d)", off, len(b))
	}
	dtype := int(binary.LittleEndian.Uint32(b[off : off+4]))
	nbytes := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
	return dtype, nbytes
}

func TestHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	_, err := NewWriter(buf)
	if err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if len(b) != headerLen {
		t.Fatalf("expected %d header bytes, got %d", headerLen, len(b))
	}
	if !bytes.HasPrefix(b, []byte("MATLAB 5.0 MAT-file")) {
		t.Error("header does not start with the MAT magic text")
	}
	if v := binary.LittleEndian.Uint16(b[124:126]); v != 0x0100 {
		t.Errorf("expected version 0x0100, got %#04x", v)
	}
	if b[126] != 'I' || b[127] != 'M' {
		t.Errorf("expected endian indicator IM, got %c%c", b[126], b[127])
	}
}

func TestMatrixIsColumnMajor(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf)
	if err != nil {
		t.Fatal(err)
	}
	// row-major input for [[1 2 3] [4 5 6]]
	err = w.PutMatrix("array", []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	off := headerLen

	dtype, nbytes := readTag(t, b, off)
	if dtype != miMATRIX {
		t.Fatalf("expected miMATRIX element, got type %d", dtype)
	}
	if off+8+nbytes != len(b) {
		t.Errorf("miMATRIX length %d does not reach end of file (%d)", nbytes, len(b)-off-8)
	}
	off += 8

	// array flags
	dtype, nbytes = readTag(t, b, off)
	if dtype != miUINT32 || nbytes != 8 {
		t.Fatalf("expected miUINT32 x8 array flags, got type %d size %d", dtype, nbytes)
	}
	if class := binary.LittleEndian.Uint32(b[off+8:off+12]) & 0xff; class != mxDOUBLE {
		t.Errorf("expected mxDOUBLE class, got %d", class)
	}
	off += 16

	// dimensions
	dtype, nbytes = readTag(t, b, off)
	if dtype != miINT32 || nbytes != 8 {
		t.Fatalf("expected miINT32 x8 dimensions, got type %d size %d", dtype, nbytes)
	}
	rows := binary.LittleEndian.Uint32(b[off+8 : off+12])
	cols := binary.LittleEndian.Uint32(b[off+12 : off+16])
	if rows != 2 || cols != 3 {
		t.Errorf("expected dims 2x3, got %dx%d", rows, cols)
	}
	off += 16

	// name
	dtype, nbytes = readTag(t, b, off)
	if dtype != miINT8 || nbytes != 5 {
		t.Fatalf("expected 5-byte miINT8 name, got type %d size %d", dtype, nbytes)
	}
	if string(b[off+8:off+13]) != "array" {
		t.Errorf("expected name array, got %q", b[off+8:off+13])
	}
	off += 8 + 5 + 3 // name padded to 8

	// real part, column-major
	dtype, nbytes = readTag(t, b, off)
	if dtype != miDOUBLE || nbytes != 48 {
		t.Fatalf("expected 48-byte miDOUBLE data, got type %d size %d", dtype, nbytes)
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	for i, v := range want {
		got := math.Float64frombits(binary.LittleEndian.Uint64(b[off+8+i*8 : off+16+i*8]))
		if got != v {
			t.Errorf("value %d: expected %v (column-major), got %v", i, v, got)
		}
	}
}

func TestScalarsPaddedToBoundary(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf)
	if err != nil {
		t.Fatal(err)
	}
	err = w.PutScalar("exposure", 120.5)
	if err != nil {
		t.Fatal(err)
	}
	err = w.PutInt32("gain", 40)
	if err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if len(b)%8 != 0 {
		t.Fatalf("file length %d not 8-byte aligned", len(b))
	}

	// first element: 1x1 double named exposure
	off := headerLen
	dtype, nbytes := readTag(t, b, off)
	if dtype != miMATRIX {
		t.Fatalf("expected miMATRIX, got type %d", dtype)
	}
	next := off + 8 + nbytes

	// walk to its real part: flags(16) + dims(16) + name(8+8)
	doff := off + 8 + 16 + 16 + 16
	dtype, nbytes = readTag(t, b, doff)
	if dtype != miDOUBLE || nbytes != 8 {
		t.Fatalf("expected 8-byte miDOUBLE scalar, got type %d size %d", dtype, nbytes)
	}
	got := math.Float64frombits(binary.LittleEndian.Uint64(b[doff+8 : doff+16]))
	if got != 120.5 {
		t.Errorf("expected 120.5, got %v", got)
	}

	// second element: 1x1 int32 named gain, 4 data bytes padded to 8
	dtype, nbytes = readTag(t, b, next)
	if dtype != miMATRIX {
		t.Fatalf("expected second miMATRIX, got type %d", dtype)
	}
	if next+8+nbytes != len(b) {
		t.Errorf("second element length %d does not reach end of file", nbytes)
	}
	doff = next + 8 + 16 + 16 + 16
	dtype, nbytes = readTag(t, b, doff)
	if dtype != miINT32 || nbytes != 4 {
		t.Fatalf("expected 4-byte miINT32 scalar, got type %d size %d", dtype, nbytes)
	}
	if v := int32(binary.LittleEndian.Uint32(b[doff+8 : doff+12])); v != 40 {
		t.Errorf("expected gain 40, got %d", v)
	}
}

func TestMatrixSizeMismatchRejected(t *testing.T) {
	w, err := NewWriter(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	err = w.PutMatrix("array", []float64{1, 2, 3}, 2, 2)
	if err == nil {
		t.Fatal("expected short data to be rejected")
	}
}
