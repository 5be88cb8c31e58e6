// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Production code takes a [Clock] and is handed [Real]. Tests hand it
// [Fake], whose time only moves when [FakeClock.Advance] is called.
// AfterFunc callbacks registered on a fake clock run synchronously
// inside Advance, in deadline order, which is what lets the event
// loop's retry timers be tested without sleeping:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	loop := eventloop.New(fakeClock, logger)
//	// ... arm a loop timer for 5s ...
//	fakeClock.Advance(5 * time.Second) // timer expiry is posted to the loop
//	loop.RunPending()                  // and handled here
package clock
