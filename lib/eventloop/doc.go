// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventloop is the single-threaded scheduler the PEL daemon
// runs on.
//
// The repository, host notifier and manager keep no locks. Their state
// is only touched from events executed by one [Loop]: work posted with
// [Loop.Post], expiries of [Timer]s, and bodies handed over by socket
// goroutines with [Loop.Call]. An event never blocks on I/O completion;
// asynchronous work finishes by posting another event.
//
// Timers are built on [clock.Clock.AfterFunc]. The clock callback only
// posts the expiry to the loop, so a timer that is stopped or
// restarted after its clock callback fired but before the expiry event
// ran is recognised as stale and ignored.
//
// Tests drive a loop without a goroutine: post work or advance a fake
// clock, then call [Loop.RunPending] to execute everything queued.
package eventloop
