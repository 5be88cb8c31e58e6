// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

// FixedString is a NUL padded text field of fixed width. Decoded fields
// keep every byte of the field, including anything after the first
// NUL, so a decoded PEL flattens back to the bytes it came from.
type FixedString []byte

// newFixedString pads or truncates s to exactly size bytes.
func newFixedString(s string, size int) FixedString {
	field := make(FixedString, size)
	copy(field, s)
	return field
}

func readFixedString(r *reader, size int) FixedString {
	return FixedString(r.bytes(size))
}

// String returns the text before the first NUL.
func (f FixedString) String() string {
	return cString(f)
}

// write emits the field at exactly size bytes, zero filling or cutting
// a value that was not built at that width.
func (f FixedString) write(w *writer, size int) {
	if len(f) == size {
		w.bytes(f)
		return
	}
	field := make([]byte, size)
	copy(field, f)
	w.bytes(field)
}

// cString returns the bytes up to the first NUL.
func cString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
