// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package npz

import "reflect"

// reflectElem returns the element type of a slice, or the type itself if not a slice.
func reflectElem(data any) reflect.Type {
	t := reflect.TypeOf(data)
	if t.Kind() == reflect.Slice {
		return t.Elem()
	}
	return t
}

// flatLen returns the length of a slice, or -1 if data is not a slice.
func flatLen(data any) int {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return -1
	}
	return v.Len()
}
