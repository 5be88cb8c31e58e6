// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the peld YAML configuration.
//
// Configuration comes from a single file named by either the
// PEL_CONFIG environment variable (via [Load]) or the --config flag
// (via [LoadFile]). There is no automatic file search. Fields the file
// omits keep the values from [Default].
//
// After loading, ${HOME}, ${PEL_ROOT}, ${PEL_RUN} and ${VAR:-default}
// patterns in path fields are expanded. Durations are written as Go
// duration strings ("1s", "60s").
//
// This package depends on no other PEL packages.
package config
