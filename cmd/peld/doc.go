// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Peld is the platform event log daemon. It owns the PEL repository,
// creates BMC PELs from the message registry, takes in PELs from other
// creators, and notifies the host of new PELs through the host agent
// socket.
//
// All PEL state lives on a single event loop. The control socket
// (<paths.run>/peld.sock) accepts one CBOR request per connection and
// runs each handler on the loop, so handlers never race with host
// notification or pruning.
//
// Usage:
//
//	peld --config /etc/pel/peld.yaml
//
// Without --config the path is taken from PEL_CONFIG.
package main
