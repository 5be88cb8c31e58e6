// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager ties the PEL subsystem together. A [Manager] owns the
// repository, the host notifier, the message registry and the
// [DataInterface], and is the one place PELs enter the system:
//
//   - [Manager.Create] builds a BMC PEL from a registry entry, an event
//     level and additional data.
//   - [Manager.AddRaw] accepts a flattened PEL from another creator
//     (usually the host). Bytes that do not decode to a valid PEL are
//     quarantined in the root's badPEL file.
//
// After every add the manager checks the repository's size warning and,
// when it is set, schedules a prune on the event loop. Several adds in
// one loop iteration produce one prune.
//
// The manager is not safe for concurrent use. Every method must run on
// its event loop.
package manager
