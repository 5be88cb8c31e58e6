// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pel/lib/control"
)

const defaultSocket = "/run/pel/peld.sock"

// connection holds the flags of commands that talk to peld.
type connection struct {
	socket  string
	timeout time.Duration
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	socket := os.Getenv("PEL_SOCKET")
	if socket == "" {
		socket = defaultSocket
	}
	flagSet.StringVar(&c.socket, "socket", socket, "peld control socket ($PEL_SOCKET)")
	flagSet.DurationVar(&c.timeout, "timeout", 10*time.Second, "request timeout")
}

// call sends one request to peld.
func (c *connection) call(action string, fields map[string]any, result any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return control.NewClient(c.socket).Call(ctx, action, fields, result)
}

// parseID accepts decimal or 0x-prefixed hex.
func parseID(text string) (uint32, error) {
	id, err := strconv.ParseUint(text, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q: want decimal or 0x-prefixed hex", text)
	}
	return uint32(id), nil
}

// logIDFields selects a PEL by PEL ID, or by OBMC ID when byOBMC is
// set.
func logIDFields(text string, byOBMC bool) (map[string]any, error) {
	id, err := parseID(text)
	if err != nil {
		return nil, err
	}
	if byOBMC {
		return map[string]any{"obmc_id": id}, nil
	}
	return map[string]any{"pel_id": id}, nil
}
