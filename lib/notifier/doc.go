// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notifier tells the host about new PELs.
//
// The [Notifier] subscribes to repository adds and keeps a FIFO queue
// of PEL IDs the host has not yet been told about. At most one "new
// log" command is outstanding at a time. The command itself is sent by
// a [HostInterface]; the notifier only sees its immediate result and
// its later response, and reacts with a small set of timers:
//
//   - send retry, after the HostInterface refuses a command outright
//   - receive retry, after a command's response reports failure
//   - host full, after the host says it has no room for more PELs
//
// Retries are bounded: after [MaxRetries] consecutive failures the
// notifier stops until a new PEL is added, so a dead transport does
// not spin forever.
//
// Host state per PEL is persisted through the repository. A PEL moves
// new → sent when the host accepts the command, sent → acked when the
// host acknowledges it, and sent → bad_pel when the host rejects it.
// When the host goes down every sent but unacknowledged PEL returns to
// new and is queued again.
//
// All methods run on the owning [eventloop.Loop]. Work triggered from a
// repository callback is posted to the loop rather than run inline, so
// Repository.Add returns before any send is attempted.
package notifier
