// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package repository stores PELs on disk and keeps an in-memory index
// of their attributes.
//
// Each PEL is one file in <root>/logs named by its commit timestamp and
// PEL ID, so a directory listing sorts chronologically. There is no
// separate index file: [New] rebuilds the index by decoding every file,
// deleting the ones that are not valid PELs and resetting host state
// sent back to new (a notification in flight at shutdown cannot be
// trusted to have arrived).
//
// Attributes carry the on-disk size (stat blocks × 512) rather than the
// logical length, and [SizeStats] totals it along two axes: BMC or
// non-BMC creator, serviceable or informational severity. [Repository.Prune]
// keeps each of the four categories under its share of the configured
// capacity, removing oldest PELs first in four passes that prefer
// PELs already acknowledged by the HMC, then by the host, then sent
// to the host, then anything.
//
// Add and delete subscribers are called synchronously, in
// subscription order. A panicking subscriber is logged and skipped.
//
// A Repository is not safe for concurrent use. peld touches it only
// from its event loop.
package repository
