// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package npz reads and writes NumPy's .npy arrays and .npz archives.
//
// An .npz file is a zip archive of .npy members. Unlike a map, the order of the arrays given
// to Write is preserved in the archive, so readers relying on positional names ("arr_0", "arr_1")
// see them in the same order.
package npz

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/tinyimagenet/pkg/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

const (
	magic = "\x93NUMPY"

	// headerAlignment of the .npy preamble (magic + version + header length + header), as NumPy >= 1.17 writes.
	headerAlignment = 64

	// chunkSize is the number of elements converted per binary.Write/binary.Read call.
	chunkSize = 16 * 1024
)

// Array is a named, shaped, flat (row-major) array of values.
type Array struct {
	Name       string
	DType      dtypes.DType
	Dimensions []int

	// Data is a flat slice whose Go type matches DType: []float32 for Float32, []int64 for Int64, etc.
	Data any
}

// NewArray creates an Array from the flat data and its dimensions.
// It returns an error if the number of elements doesn't match the dimensions.
func NewArray[T dtypes.Supported](name string, data []T, dimensions ...int) (*Array, error) {
	a := &Array{
		Name:       name,
		DType:      dtypes.FromGenericsType[T](),
		Dimensions: dimensions,
		Data:       data,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Size returns the number of elements in the array.
func (a *Array) Size() int {
	size := 1
	for _, dim := range a.Dimensions {
		size *= dim
	}
	return size
}

// Memory returns the number of bytes used by the array data.
func (a *Array) Memory() int {
	return a.DType.SizeForDimensions(a.Dimensions...)
}

// ShapeString returns the shape in NumPy's tuple notation, e.g. "(10, 56, 56, 3)" or "(10,)".
func (a *Array) ShapeString() string {
	return shapeTuple(a.Dimensions)
}

// Validate checks that Data has the Go type corresponding to DType and the number of elements
// given by Dimensions.
func (a *Array) Validate() error {
	if a.Data == nil {
		return errors.Errorf("array %q has no data", a.Name)
	}
	if got := dtypes.FromGoType(reflectElem(a.Data)); got != a.DType {
		return errors.Errorf("array %q declared as %s, but data is %T", a.Name, a.DType, a.Data)
	}
	for _, dim := range a.Dimensions {
		if dim < 0 {
			return errors.Errorf("array %q has negative dimension in %v", a.Name, a.Dimensions)
		}
	}
	if n := flatLen(a.Data); n != a.Size() {
		return errors.Errorf("array %q has %d elements, but dimensions %v require %d",
			a.Name, n, a.Dimensions, a.Size())
	}
	return nil
}

// Flat returns the array data as a typed slice.
func Flat[T dtypes.Supported](a *Array) ([]T, error) {
	flat, ok := a.Data.([]T)
	if !ok {
		var zero T
		return nil, errors.Errorf("array %q holds %T, not []%T", a.Name, a.Data, zero)
	}
	return flat, nil
}

// Options for writing .npz archives.
type Options struct {
	// Compress members with Deflate, like numpy.savez_compressed. The default stores them
	// uncompressed, like numpy.savez.
	Compress bool
}

// Write the arrays as a .npz archive to w, in the given order.
func Write(w io.Writer, opts Options, arrays ...*Array) error {
	seen := make(map[string]bool, len(arrays))
	for _, a := range arrays {
		if seen[a.Name] {
			return errors.Errorf("duplicate array name %q in .npz archive", a.Name)
		}
		seen[a.Name] = true
	}

	method := zip.Store
	if opts.Compress {
		method = zip.Deflate
	}
	zipWriter := zip.NewWriter(w)
	for _, a := range arrays {
		npyName := a.Name + ".npy"
		memberWriter, err := zipWriter.CreateHeader(&zip.FileHeader{Name: npyName, Method: method})
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in .npz archive", npyName)
		}
		if err := WriteNpy(memberWriter, a); err != nil {
			return errors.WithMessagef(err, "failed to write array %q to .npz archive", a.Name)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return errors.Wrapf(err, "failed to close .npz archive")
	}
	return nil
}

// WriteNpy serializes one array to w in .npy (version 1.0) format.
func WriteNpy(w io.Writer, a *Array) error {
	if err := a.Validate(); err != nil {
		return err
	}
	descr, err := a.DType.NpyDescr()
	if err != nil {
		return err
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple(a.Dimensions))

	// Pad with spaces so that magic (6) + version (2) + header length (2) + header is aligned,
	// with the header terminated by a newline.
	var headerBuf bytes.Buffer
	headerBuf.WriteString(header)
	for (10+headerBuf.Len()+1)%headerAlignment != 0 {
		headerBuf.WriteByte(' ')
	}
	headerBuf.WriteByte('\n')
	if headerBuf.Len() > 0xFFFF {
		return errors.Errorf("header for array %q too long (%d bytes) for .npy version 1.0", a.Name, headerBuf.Len())
	}

	preamble := make([]byte, 0, 10)
	preamble = append(preamble, magic...)
	preamble = append(preamble, 1, 0)
	preamble = binary.LittleEndian.AppendUint16(preamble, uint16(headerBuf.Len()))
	if _, err := w.Write(preamble); err != nil {
		return errors.Wrapf(err, "failed to write .npy preamble")
	}
	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy header")
	}
	return writeData(w, a.Data)
}

// shapeTuple formats dimensions as a Python tuple: "()" for scalars, "(n,)" for rank-1.
func shapeTuple(dimensions []int) string {
	switch len(dimensions) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(%d,)", dimensions[0])
	}
	parts := make([]string, len(dimensions))
	for ii, dim := range dimensions {
		parts[ii] = strconv.Itoa(dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Read all arrays of a .npz file, in archive order.
func Read(filePath string) ([]*Array, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npz file %q", filePath)
	}
	return ReadFrom(file, info.Size())
}

// ReadFrom reads all arrays of a .npz archive from r, in archive order.
// Members that are not .npy files are ignored.
func ReadFrom(r io.ReaderAt, size int64) ([]*Array, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create zip reader for .npz")
	}
	var arrays []*Array
	for _, f := range zipReader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("invalid path in .npz archive: %q (normalized to %q)", f.Name, cleanPath)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q within .npz", f.Name)
		}
		a, err := ReadNpy(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read array %q from .npz", f.Name)
		}
		a.Name = strings.TrimSuffix(f.Name, ".npy")
		arrays = append(arrays, a)
	}
	return arrays, nil
}

// ReadNpy reads one .npy array from r. Only C-order (row-major) arrays are supported.
func ReadNpy(r io.Reader) (*Array, error) {
	preamble := make([]byte, 8)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy magic string")
	}
	if string(preamble[:6]) != magic {
		return nil, errors.Errorf("invalid .npy file format: magic string mismatch")
	}
	var headerLen int
	switch major := preamble[6]; {
	case major == 1:
		lenBytes := make([]byte, 2)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes))
	case major >= 2:
		lenBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v2.0+)")
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes))
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", preamble[6], preamble[7])
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy header")
	}
	descr, dimensions, fortranOrder, err := parseHeader(string(headerBytes))
	if err != nil {
		return nil, err
	}
	if fortranOrder && len(dimensions) > 1 {
		return nil, errors.Errorf("fortran-order .npy arrays are not supported")
	}
	dtype, err := dtypes.FromNpyDescr(descr)
	if err != nil {
		return nil, err
	}
	a := &Array{DType: dtype, Dimensions: dimensions}
	a.Data, err = readData(r, dtype, a.Size())
	if err != nil {
		return nil, err
	}
	return a, nil
}

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// parseHeader extracts dtype, shape and fortran_order from the .npy header dictionary.
// Example: "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2, 3), }"
func parseHeader(header string) (descr string, dimensions []int, fortranOrder bool, err error) {
	m := reDescr.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("could not find 'descr' in .npy header: %q", header)
		return
	}
	descr = m[1]

	m = reFortran.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("could not find 'fortran_order' in .npy header: %q", header)
		return
	}
	fortranOrder = m[1] == "True"

	m = reShape.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("could not find 'shape' in .npy header: %q", header)
		return
	}
	dimensions = []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			// Trailing comma of "(n,)" or the empty scalar shape "()".
			continue
		}
		dim, convErr := strconv.Atoi(part)
		if convErr != nil {
			err = errors.Wrapf(convErr, "invalid shape value %q in .npy header", part)
			return
		}
		dimensions = append(dimensions, dim)
	}
	return
}

func writeData(w io.Writer, data any) error {
	switch flat := data.(type) {
	case []bool:
		return writeChunks(w, flat)
	case []int8:
		return writeChunks(w, flat)
	case []int16:
		return writeChunks(w, flat)
	case []int32:
		return writeChunks(w, flat)
	case []int64:
		return writeChunks(w, flat)
	case []uint8:
		return writeChunks(w, flat)
	case []uint16:
		return writeChunks(w, flat)
	case []uint32:
		return writeChunks(w, flat)
	case []uint64:
		return writeChunks(w, flat)
	case []float16.Float16:
		return writeChunks(w, flat)
	case []float32:
		return writeChunks(w, flat)
	case []float64:
		return writeChunks(w, flat)
	}
	return errors.Errorf("unsupported array data type %T", data)
}

func writeChunks[T dtypes.Supported](w io.Writer, flat []T) error {
	for start := 0; start < len(flat); start += chunkSize {
		end := min(start+chunkSize, len(flat))
		if err := binary.Write(w, binary.LittleEndian, flat[start:end]); err != nil {
			return errors.Wrapf(err, "failed to write array data")
		}
	}
	return nil
}

func readData(r io.Reader, dtype dtypes.DType, size int) (any, error) {
	switch dtype {
	case dtypes.Bool:
		return readChunks[bool](r, size)
	case dtypes.Int8:
		return readChunks[int8](r, size)
	case dtypes.Int16:
		return readChunks[int16](r, size)
	case dtypes.Int32:
		return readChunks[int32](r, size)
	case dtypes.Int64:
		return readChunks[int64](r, size)
	case dtypes.Uint8:
		return readChunks[uint8](r, size)
	case dtypes.Uint16:
		return readChunks[uint16](r, size)
	case dtypes.Uint32:
		return readChunks[uint32](r, size)
	case dtypes.Uint64:
		return readChunks[uint64](r, size)
	case dtypes.Float16:
		return readChunks[float16.Float16](r, size)
	case dtypes.Float32:
		return readChunks[float32](r, size)
	case dtypes.Float64:
		return readChunks[float64](r, size)
	}
	return nil, errors.Errorf("unsupported dtype %s", dtype)
}

func readChunks[T dtypes.Supported](r io.Reader, size int) ([]T, error) {
	flat := make([]T, size)
	for start := 0; start < size; start += chunkSize {
		end := min(start+chunkSize, size)
		if err := binary.Read(r, binary.LittleEndian, flat[start:end]); err != nil {
			return nil, errors.Wrapf(err, "failed to read array data (expected %d elements)", size)
		}
	}
	return flat, nil
}
