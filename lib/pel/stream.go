// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// errShortBuffer reports a read past the end of a section.
var errShortBuffer = errors.New("read past end of section")

// reader is a big-endian cursor over a byte slice. The first short read
// latches err and every later read returns zero values, so parse
// functions read all fields and check err once.
type reader struct {
	data   []byte
	offset int
	err    error
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.data)-r.offset < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			errShortBuffer, n, r.offset, len(r.data)-r.offset)
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	value := r.data[r.offset]
	r.offset++
	return value
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	value := binary.BigEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return value
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	value := binary.BigEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return value
}

// bytes returns a copy of the next n bytes.
func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	value := make([]byte, n)
	copy(value, r.data[r.offset:])
	r.offset += n
	return value
}

func (r *reader) fill(destination []byte) {
	if !r.need(len(destination)) {
		return
	}
	copy(destination, r.data[r.offset:])
	r.offset += len(destination)
}

func (r *reader) remaining() int {
	return len(r.data) - r.offset
}

// finish returns the latched error, or an error if bytes remain
// unconsumed.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return fmt.Errorf("%d unexpected trailing bytes", r.remaining())
	}
	return nil
}

// writer appends big-endian fields to a growing buffer.
type writer struct {
	buffer []byte
}

func (w *writer) u8(value uint8) {
	w.buffer = append(w.buffer, value)
}

func (w *writer) u16(value uint16) {
	w.buffer = binary.BigEndian.AppendUint16(w.buffer, value)
}

func (w *writer) u32(value uint32) {
	w.buffer = binary.BigEndian.AppendUint32(w.buffer, value)
}

func (w *writer) bytes(value []byte) {
	w.buffer = append(w.buffer, value...)
}
