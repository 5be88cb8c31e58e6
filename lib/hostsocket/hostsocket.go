// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostsocket delivers new-log commands to a host agent over
// the control protocol. It implements notifier.HostInterface.
//
// A command is one "new-log" request on the agent's Unix socket, run
// on its own goroutine with a response timeout. The outcome is posted
// back to the event loop, where the notifier's response function is
// called. A missing socket fails the send immediately, so a host
// agent that is not running costs a retry timer rather than a timeout.
package hostsocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/pel/lib/control"
	"github.com/bureau-foundation/pel/lib/eventloop"
	"github.com/bureau-foundation/pel/lib/notifier"
)

// ErrCommandInProgress is returned by SendNewLogCmd while an earlier
// command is still awaiting its response.
var ErrCommandInProgress = errors.New("new-log command already in progress")

// Config configures a Host.
type Config struct {
	Loop       *eventloop.Loop
	SocketPath string

	// ResponseTimeout bounds one command, connect to response.
	ResponseTimeout time.Duration

	SendRetryDelay     time.Duration
	ReceiveRetryDelay  time.Duration
	HostFullRetryDelay time.Duration

	Logger *slog.Logger
}

// Host is a notifier.HostInterface backed by the host agent socket.
// Its methods must be called on the loop.
type Host struct {
	config Config
	client *control.Client

	response   func(notifier.ResponseStatus)
	cancel     context.CancelFunc
	generation uint64
	inProgress bool

	// commands tracks request goroutines so Close can wait for them.
	commands sync.WaitGroup
}

var _ notifier.HostInterface = (*Host)(nil)

// New creates a Host.
func New(config Config) *Host {
	return &Host{
		config: config,
		client: control.NewClient(config.SocketPath).WithResponseTimeout(config.ResponseTimeout),
	}
}

func (h *Host) SetResponseFunc(fn func(notifier.ResponseStatus)) {
	h.response = fn
}

func (h *Host) SendNewLogCmd(id uint32, size uint64) error {
	if h.inProgress {
		return ErrCommandInProgress
	}
	if _, err := os.Stat(h.config.SocketPath); err != nil {
		return fmt.Errorf("host agent socket: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.ResponseTimeout)
	h.generation++
	generation := h.generation
	h.cancel = cancel
	h.inProgress = true

	h.commands.Add(1)
	go func() {
		defer h.commands.Done()
		defer cancel()

		fields := map[string]any{"pel_id": id, "size": size}
		err := h.client.Call(ctx, control.ActionNewLog, fields, nil)
		h.config.Loop.Post(func() { h.complete(generation, id, err) })
	}()
	return nil
}

// complete runs on the loop when a command finishes. Results of
// cancelled commands are dropped.
func (h *Host) complete(generation uint64, id uint32, err error) {
	if generation != h.generation || !h.inProgress {
		h.config.Logger.Debug("dropping response of cancelled command",
			"pel_id", fmt.Sprintf("0x%08X", id),
		)
		return
	}
	h.inProgress = false
	h.cancel = nil

	status := notifier.ResponseSuccess
	if err != nil {
		status = notifier.ResponseFailure
		h.config.Logger.Warn("new-log command failed",
			"pel_id", fmt.Sprintf("0x%08X", id),
			"socket", h.config.SocketPath,
			"error", err,
		)
	}
	if h.response != nil {
		h.response(status)
	}
}

func (h *Host) CancelCmd() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.generation++
	h.inProgress = false
}

func (h *Host) CmdInProgress() bool { return h.inProgress }

func (h *Host) SendRetryDelay() time.Duration     { return h.config.SendRetryDelay }
func (h *Host) ReceiveRetryDelay() time.Duration  { return h.config.ReceiveRetryDelay }
func (h *Host) HostFullRetryDelay() time.Duration { return h.config.HostFullRetryDelay }

// Close cancels any command and waits for its goroutine to exit.
func (h *Host) Close() {
	h.CancelCmd()
	h.commands.Wait()
}
