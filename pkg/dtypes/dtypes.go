// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes enumerates the element types that can be stored in a NumPy array archive,
// and converts them to/from Go types and NumPy "descr" strings.
//
// It is a reduced form of the GoMLX dtypes: only the types NumPy can represent natively.
package dtypes

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is an enum of the supported array element types.
type DType int32

const (
	InvalidDType DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
)

// Aliases.
const (
	F16 = Float16
	F32 = Float32
	F64 = Float64
)

var dtypeNames = [...]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(dtypeNames) {
		return "DType(" + strconv.Itoa(int(dtype)) + ")"
	}
	return dtypeNames[dtype]
}

// MapOfNames maps names (and lower-case names, and the F16/F32/F64 aliases) to DType.
var MapOfNames = map[string]DType{}

func init() {
	for dtype, name := range dtypeNames {
		if DType(dtype) == InvalidDType {
			continue
		}
		MapOfNames[name] = DType(dtype)
		MapOfNames[strings.ToLower(name)] = DType(dtype)
	}
	for alias, dtype := range map[string]DType{"F16": F16, "F32": F32, "F64": F64} {
		MapOfNames[alias] = dtype
		MapOfNames[strings.ToLower(alias)] = dtype
	}
}

// Parse returns the DType with the given name, case-insensitive.
func Parse(name string) (DType, error) {
	if dtype, found := MapOfNames[name]; found {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// Supported lists the Go types that have a corresponding DType.
// Used as traits for generics.
//
// Go's int is not included: its size is platform dependent.
type Supported interface {
	bool | float16.Float16 | float32 | float64 |
		int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// FromGenericsType returns the DType enum for the given type.
func FromGenericsType[T Supported]() DType {
	var t T
	return FromGoType(reflect.TypeOf(t))
}

var float16Type = reflect.TypeOf(float16.Float16(0))

// FromGoType returns the DType for the given reflect.Type, or InvalidDType if not supported.
func FromGoType(t reflect.Type) DType {
	if t == float16Type {
		return Float16
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int8:
		return Int8
	case reflect.Int16:
		return Int16
	case reflect.Int32:
		return Int32
	case reflect.Int64:
		return Int64
	case reflect.Uint8:
		return Uint8
	case reflect.Uint16:
		return Uint16
	case reflect.Uint32:
		return Uint32
	case reflect.Uint64:
		return Uint64
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	default:
		return InvalidDType
	}
}

// Size returns the number of bytes of one element of the given DType, or 0 for InvalidDType.
func (dtype DType) Size() int {
	switch dtype {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// SizeForDimensions returns the size in bytes used for an array with the given dimensions.
// It works also for scalars, where the list of dimensions is empty.
func (dtype DType) SizeForDimensions(dimensions ...int) int {
	numElements := 1
	for _, dim := range dimensions {
		numElements *= dim
	}
	return numElements * dtype.Size()
}

// IsFloat returns whether dtype is a floating point type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// NpyDescr returns the NumPy dtype string ("descr" in the .npy header), little-endian.
func (dtype DType) NpyDescr() (string, error) {
	switch dtype {
	case Bool:
		return "|b1", nil
	case Int8:
		return "|i1", nil
	case Uint8:
		return "|u1", nil
	case Int16:
		return "<i2", nil
	case Uint16:
		return "<u2", nil
	case Int32:
		return "<i4", nil
	case Uint32:
		return "<u4", nil
	case Int64:
		return "<i8", nil
	case Uint64:
		return "<u8", nil
	case Float16:
		return "<f2", nil
	case Float32:
		return "<f4", nil
	case Float64:
		return "<f8", nil
	default:
		return "", errors.Errorf("dtype %s has no NumPy equivalent", dtype)
	}
}

// FromNpyDescr converts a NumPy dtype string to a DType.
//
// Only little-endian ('<'), native ('=') or not-applicable ('|') byte orders are accepted.
func FromNpyDescr(descr string) (DType, error) {
	if descr == "?" {
		return Bool, nil
	}
	if len(descr) < 2 {
		return InvalidDType, errors.Errorf("invalid NumPy dtype %q", descr)
	}
	body := descr
	switch descr[0] {
	case '<', '=', '|':
		body = descr[1:]
	case '>':
		return InvalidDType, errors.Errorf("big-endian NumPy dtype %q not supported", descr)
	}
	switch body {
	case "b1":
		return Bool, nil
	case "i1":
		return Int8, nil
	case "u1":
		return Uint8, nil
	case "i2":
		return Int16, nil
	case "u2":
		return Uint16, nil
	case "i4":
		return Int32, nil
	case "u4":
		return Uint32, nil
	case "i8":
		return Int64, nil
	case "u8":
		return Uint64, nil
	case "f2":
		return Float16, nil
	case "f4":
		return Float32, nil
	case "f8":
		return Float64, nil
	}
	return InvalidDType, errors.Errorf("unsupported NumPy dtype %q", descr)
}
