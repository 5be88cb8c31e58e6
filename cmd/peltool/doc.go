// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Peltool inspects platform event logs.
//
// Offline commands read PEL files directly: "decode" prints a PEL
// file, and "archive" lists or extracts PELs from a repository's
// archive directory. Every other command talks to a running peld over
// its control socket (--socket, or $PEL_SOCKET).
package main
