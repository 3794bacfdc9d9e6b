// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestMapOfNames(t *testing.T) {
	assert.Equal(t, Float16, MapOfNames["Float16"])
	assert.Equal(t, Float16, MapOfNames["float16"])
	assert.Equal(t, Float32, MapOfNames["F32"])
	assert.Equal(t, Float32, MapOfNames["f32"])
	_, found := MapOfNames["InvalidDType"]
	assert.False(t, found)

	dtype, err := Parse("FLOAT32")
	require.NoError(t, err)
	assert.Equal(t, Float32, dtype)
	_, err = Parse("float128")
	require.Error(t, err)
}

func TestFromGenericsType(t *testing.T) {
	assert.Equal(t, Float32, FromGenericsType[float32]())
	assert.Equal(t, Float16, FromGenericsType[float16.Float16]())
	assert.Equal(t, Int64, FromGenericsType[int64]())
	assert.Equal(t, Uint8, FromGenericsType[uint8]())
	assert.Equal(t, Bool, FromGenericsType[bool]())
}

func TestNpyDescr(t *testing.T) {
	for _, dtype := range []DType{Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float16, Float32, Float64} {
		descr, err := dtype.NpyDescr()
		require.NoError(t, err, "dtype=%s", dtype)
		back, err := FromNpyDescr(descr)
		require.NoError(t, err, "descr=%q", descr)
		assert.Equal(t, dtype, back)
	}
	_, err := InvalidDType.NpyDescr()
	require.Error(t, err)

	dtype, err := FromNpyDescr("=f4")
	require.NoError(t, err)
	assert.Equal(t, Float32, dtype)
	_, err = FromNpyDescr(">f4")
	require.Error(t, err)
	_, err = FromNpyDescr("<U10")
	require.Error(t, err)
}

func TestSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 8, Int64.Size())
	assert.Equal(t, 0, InvalidDType.Size())
	assert.Equal(t, 56*56*3*4, Float32.SizeForDimensions(56, 56, 3))
	assert.Equal(t, 8, Int64.SizeForDimensions())
	assert.Equal(t, "Float32", Float32.String())
	assert.Equal(t, "DType(99)", DType(99).String())
}
