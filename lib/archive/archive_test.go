// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// compressible returns PEL-like bytes with plenty of repetition.
func compressible(size int) []byte {
	pattern := []byte("PH\x000\x01\x00\x20\x00UH\x00\x18\x01\x00\x20\x00")
	return bytes.Repeat(pattern, size/len(pattern)+1)[:size]
}

func incompressible(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestStoreReadRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			archive, err := New(t.TempDir(), compression, 0, testLogger())
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			inputs := map[string][]byte{
				"2026031409265358_50000001": compressible(4096),
				"2026031409265359_50000002": incompressible(t, 512),
				"2026031409265360_50000003": {},
			}
			for name, data := range inputs {
				if err := archive.Store(name, data); err != nil {
					t.Fatalf("Store(%s): %v", name, err)
				}
			}
			for name, want := range inputs {
				got, err := archive.Read(name)
				if err != nil {
					t.Fatalf("Read(%s): %v", name, err)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("Read(%s) returned %d bytes that differ from the %d stored", name, len(got), len(want))
				}
			}

			names, err := archive.List()
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(names) != 3 || names[0] != "2026031409265358_50000001" {
				t.Errorf("List() = %v", names)
			}
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			archive, err := New(t.TempDir(), compression, 0, testLogger())
			if err != nil {
				t.Fatal(err)
			}
			if err := archive.Store("pel", compressible(8192)); err != nil {
				t.Fatal(err)
			}
			size, err := archive.Size()
			if err != nil {
				t.Fatal(err)
			}
			if size >= 8192 {
				t.Errorf("archived size %d not smaller than input", size)
			}
		})
	}
}

func TestTrimRemovesOldestFirst(t *testing.T) {
	directory := t.TempDir()
	archive, err := New(directory, CompressionNone, 3*(1024+headerSize), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	for i := range 5 {
		if err := archive.Store(fmt.Sprintf("20260314092653%02d_5000000%d", i, i), incompressible(t, 1024)); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}

	names, err := archive.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2026031409265302_50000002", "2026031409265303_50000003", "2026031409265304_50000004"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	if _, err := archive.Read("2026031409265300_50000000"); !errors.Is(err, ErrNotArchived) {
		t.Errorf("Read of trimmed PEL: %v, want ErrNotArchived", err)
	}
}

func TestReadMissing(t *testing.T) {
	archive, err := New(t.TempDir(), CompressionZstd, 0, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := archive.Read("nothing"); !errors.Is(err, ErrNotArchived) {
		t.Errorf("Read() error = %v, want ErrNotArchived", err)
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		compression, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", name, err)
		}
		if compression.String() != name {
			t.Errorf("round trip of %q gave %q", name, compression.String())
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression accepted gzip")
	}
}
