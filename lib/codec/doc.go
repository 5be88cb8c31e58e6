// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR encoding configuration.
//
// CBOR is the format of the peld control socket, the host agent
// socket, and CBOR-subtype User Data sections. JSON appears only at
// the edges: peltool --json output and the JSON User Data section a
// BMC-created PEL carries its additional data in.
//
// The encoder uses Core Deterministic Encoding, so the same logical
// value always produces identical bytes:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Socket code uses the stream forms:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that only ever travel as CBOR carry `cbor` struct tags. Types
// that peltool also prints as JSON carry `json` tags, which
// fxamacker/cbor reads as a fallback. Never put both on one field.
package codec
