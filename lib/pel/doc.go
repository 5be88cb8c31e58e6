// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pel encodes and decodes Platform Event Logs.
//
// A PEL is a sequence of sections, each starting with an 8-byte
// big-endian [SectionHeader]. The first section is always the
// [PrivateHeader] (IDs, timestamps, creator) and the second the
// [UserHeader] (severity, action flags, transmission states). Optional
// sections follow: the primary [SRC] with its hex words and callouts,
// the [ExtendedUserHeader], any number of [UserData] sections, and
// anything else as [Generic].
//
// Decoding never fails and never panics. [Unflatten] always returns a
// PEL; sections it cannot interpret, including known sections whose
// bodies are malformed and trailing bytes too short for a header, are
// carried as Generic sections so [PEL.Flatten] reproduces the input
// byte for byte. [PEL.Valid] says whether the result is usable.
//
// PELs built by this BMC are assembled with [New] from
// [NewPrivateHeader], [NewUserHeader], [NewSRC],
// [NewExtendedUserHeader] and [NewUserData].
package pel
