// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the PEL packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets, whose 108-byte sun_path limit deeply nested
// t.TempDir() paths can exceed. [WaitForFile] waits for a server
// goroutine to create its socket.
//
// [WriteFile] and [ListDir] cover the file fixtures repository tests
// build: seeding a log directory with raw PEL files and checking which
// files survive a prune.
//
// [RequireReceive] wraps the select-with-timeout pattern so tests
// never call time.After directly. These helpers are the only place
// tests use real wall-clock timeouts; timer logic runs on a fake
// clock.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
