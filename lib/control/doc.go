// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the request/response protocol peld speaks
// on its Unix sockets.
//
// Each connection carries exactly one exchange: the client writes one
// CBOR map with an "action" field plus action-specific fields, the
// server writes one [Response] and closes the connection. CBOR is
// self-delimiting, so there is no framing.
//
// [Server] dispatches on the action name to handlers registered with
// [Server.Handle]. [Client] opens a connection per [Client.Call] and
// turns ok=false responses into a [*ServiceError].
//
// The request and response bodies of peld's own actions, and of the
// "new-log" action peld sends to the host agent, are defined in
// protocol.go so that peld, peltool and host agents share them.
package control
