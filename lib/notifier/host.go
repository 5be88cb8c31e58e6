// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"time"

	"github.com/bureau-foundation/pel/lib/pel"
	"github.com/bureau-foundation/pel/lib/repository"
)

// ResponseStatus is the outcome of a new-log command reported by the
// host transport.
type ResponseStatus int

const (
	ResponseSuccess ResponseStatus = iota
	ResponseFailure
)

func (s ResponseStatus) String() string {
	switch s {
	case ResponseSuccess:
		return "success"
	case ResponseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// HostInterface is the transport that carries new-log commands to the
// host.
type HostInterface interface {
	// SendNewLogCmd starts a command telling the host that PEL id of
	// size bytes is available. A nil return means the command is in
	// flight and the response function will be called exactly once,
	// on the event loop, with its outcome.
	SendNewLogCmd(id uint32, size uint64) error

	// SetResponseFunc registers the function that receives command
	// outcomes. Only the most recent registration is called.
	SetResponseFunc(fn func(ResponseStatus))

	// CancelCmd abandons any in-flight command; its response is never
	// delivered. Safe to call with nothing in flight.
	CancelCmd()

	// CmdInProgress reports whether a command is awaiting its response.
	CmdInProgress() bool

	SendRetryDelay() time.Duration
	ReceiveRetryDelay() time.Duration
	HostFullRetryDelay() time.Duration
}

// SystemState answers the notifier's questions about the rest of the
// system. Host power edges are delivered separately through
// [Notifier.HostStateChanged].
type SystemState interface {
	// HostUp reports whether the host is running and able to take
	// commands.
	HostUp() bool

	// HMCManaged reports whether an HMC is currently managing the
	// system. Hidden PELs are left for the HMC when it is.
	HMCManaged() bool

	// HostPELEnabled reports whether PEL reporting to the host is
	// enabled at all.
	HostPELEnabled() bool
}

// Repository is the subset of the PEL repository the notifier uses.
type Repository interface {
	PELAttributes(id repository.LogID) (repository.Attributes, bool)
	SetHostTransState(pelID uint32, state pel.TransmissionState)
	ForEach(fn func(*pel.PEL) bool)
	SubscribeToAdds(name string, fn func(*pel.PEL))
	SubscribeToDeletes(name string, fn func(pelID uint32))
	UnsubscribeFromAdds(name string)
	UnsubscribeFromDeletes(name string)
}
