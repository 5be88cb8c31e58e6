// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/pel/lib/atomicfile"
)

const (
	// BMCPELIDBase is the high byte of every PEL ID this BMC assigns.
	BMCPELIDBase uint32 = 0x50000000

	pelIDMask = 0x00FFFFFF

	pelIDFileName = "pelID"
)

func (r *Repository) pelIDPath() string {
	return filepath.Join(r.root, pelIDFileName)
}

func (r *Repository) loadPELID() error {
	path := r.pelIDPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &FileError{Op: "read", Path: path, Err: err}
	}
	if len(data) != 4 {
		r.logger.Warn("ignoring malformed PEL ID counter file",
			"path", path,
			"size", len(data),
		)
		return nil
	}
	r.lastPELID = binary.BigEndian.Uint32(data) & pelIDMask
	return nil
}

// NextPELID reserves and returns the next BMC PEL ID. The counter is
// persisted before the ID is returned, so IDs are not reused across
// restarts. The low 24 bits wrap from 0xFFFFFF to 1.
func (r *Repository) NextPELID() (uint32, error) {
	next := (r.lastPELID + 1) & pelIDMask
	if next == 0 {
		next = 1
	}

	var encoded [4]byte
	binary.BigEndian.PutUint32(encoded[:], next)
	path := r.pelIDPath()
	if err := atomicfile.Write(path, encoded[:], 0o644); err != nil {
		return 0, fmt.Errorf("persisting PEL ID counter: %w", &FileError{Op: "write", Path: path, Err: err})
	}
	r.lastPELID = next
	return BMCPELIDBase | next, nil
}
