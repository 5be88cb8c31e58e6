// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive keeps compressed copies of PELs removed from the
// repository, so pruned logs stay available for offline diagnosis
// until the archive's own size cap pushes them out.
//
// Each archived PEL is one file named after its repository file plus
// an extension for the algorithm. The file starts with a 5-byte
// header: the compression byte and the big-endian uncompressed length.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/pel/lib/atomicfile"
)

const headerSize = 5

// ErrNotArchived is returned by Read for a name with no archive file.
var ErrNotArchived = errors.New("PEL not archived")

// Archive is a size-capped directory of compressed PELs. It is not
// safe for concurrent use; the repository calls it from the event
// loop.
type Archive struct {
	directory   string
	compression Compression
	maxSize     uint64
	logger      *slog.Logger
}

// New opens (creating if needed) an archive in directory. maxSize of
// zero means unlimited.
func New(directory string, compression Compression, maxSize uint64, logger *slog.Logger) (*Archive, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &Archive{
		directory:   directory,
		compression: compression,
		maxSize:     maxSize,
		logger:      logger,
	}, nil
}

// Store archives data under name, then trims the oldest archived PELs
// until the archive fits its cap. Data that does not compress is
// stored uncompressed.
func (a *Archive) Store(name string, data []byte) error {
	compression := a.compression
	body, err := compress(data, compression)
	if errors.Is(err, errIncompressible) {
		compression = CompressionNone
		body = data
	} else if err != nil {
		return err
	}

	file := make([]byte, headerSize, headerSize+len(body))
	file[0] = byte(compression)
	binary.BigEndian.PutUint32(file[1:], uint32(len(data)))
	file = append(file, body...)

	path := filepath.Join(a.directory, name+compression.extension())
	if err := atomicfile.Write(path, file, 0o644); err != nil {
		return err
	}
	a.logger.Debug("archived PEL",
		"name", name,
		"compression", compression.String(),
		"size", len(data),
		"stored_size", len(file),
	)

	return a.trim()
}

// Read returns the original bytes of an archived PEL.
func (a *Archive) Read(name string) ([]byte, error) {
	for _, compression := range []Compression{CompressionZstd, CompressionLZ4, CompressionNone} {
		path := filepath.Join(a.directory, name+compression.extension())
		file, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return decode(path, file)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotArchived)
}

func decode(path string, file []byte) ([]byte, error) {
	if len(file) < headerSize {
		return nil, fmt.Errorf("archive file %s is truncated", path)
	}
	compression := Compression(file[0])
	size := int(binary.BigEndian.Uint32(file[1:headerSize]))
	data, err := decompress(file[headerSize:], compression, size)
	if err != nil {
		return nil, fmt.Errorf("archive file %s: %w", path, err)
	}
	return data, nil
}

type entry struct {
	name string
	file string
	size uint64
}

// entries returns the archive files sorted by name, oldest first.
func (a *Archive) entries() ([]entry, error) {
	directoryEntries, err := os.ReadDir(a.directory)
	if err != nil {
		return nil, err
	}
	var entries []entry
	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.Type().IsRegular() || strings.HasPrefix(directoryEntry.Name(), ".") {
			continue
		}
		info, err := directoryEntry.Info()
		if err != nil {
			continue
		}
		file := directoryEntry.Name()
		entries = append(entries, entry{
			name: strings.TrimSuffix(file, filepath.Ext(file)),
			file: file,
			size: uint64(info.Size()),
		})
	}
	slices.SortFunc(entries, func(x, y entry) int { return strings.Compare(x.file, y.file) })
	return entries, nil
}

// List returns the archived PEL names, oldest first.
func (a *Archive) List() ([]string, error) {
	entries, err := a.entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.name
	}
	return names, nil
}

// Size returns the bytes used by archive files.
func (a *Archive) Size() (uint64, error) {
	entries, err := a.entries()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, entry := range entries {
		total += entry.size
	}
	return total, nil
}

func (a *Archive) trim() error {
	if a.maxSize == 0 {
		return nil
	}
	entries, err := a.entries()
	if err != nil {
		return err
	}
	var total uint64
	for _, entry := range entries {
		total += entry.size
	}
	for _, entry := range entries {
		if total <= a.maxSize {
			break
		}
		if err := os.Remove(filepath.Join(a.directory, entry.file)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("trimming archive: %w", err)
		}
		total -= entry.size
		a.logger.Info("removed archived PEL over archive size cap",
			"name", entry.name,
			"archive_size", total,
			"max_size", a.maxSize,
		)
	}
	return nil
}
