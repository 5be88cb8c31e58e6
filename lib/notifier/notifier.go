// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/bureau-foundation/pel/lib/eventloop"
	"github.com/bureau-foundation/pel/lib/pel"
	"github.com/bureau-foundation/pel/lib/repository"
)

// MaxRetries is the number of consecutive failed attempts after which
// the notifier stops sending until a new PEL is added.
const MaxRetries = 15

const subscriptionName = "host_notifier"

// Config holds the collaborators of a Notifier. All fields are
// required.
type Config struct {
	Loop       *eventloop.Loop
	Repository Repository
	System     SystemState
	Host       HostInterface
	Logger     *slog.Logger
}

// Notifier drives delivery of new-log notifications to the host.
type Notifier struct {
	loop       *eventloop.Loop
	repository Repository
	system     SystemState
	host       HostInterface
	logger     *slog.Logger

	// queue holds PEL IDs not yet accepted by the host, in order.
	queue []uint32
	// sent holds PEL IDs the host accepted but has not acknowledged.
	sent []uint32
	// inProgress is the PEL ID of the outstanding command, or 0.
	inProgress uint32

	retryCount int
	hostFull   bool

	dispatchScheduled bool
	retryTimer        *eventloop.Timer
	hostFullTimer     *eventloop.Timer
}

// New creates a Notifier, subscribes it to the repository, queues
// every stored PEL the host still needs, and starts sending if the
// host is up. Must be called on the loop.
func New(config Config) *Notifier {
	n := &Notifier{
		loop:       config.Loop,
		repository: config.Repository,
		system:     config.System,
		host:       config.Host,
		logger:     config.Logger,
	}
	n.retryTimer = n.loop.NewTimer(n.retryTimerExpired)
	n.hostFullTimer = n.loop.NewTimer(n.hostFullTimerExpired)

	n.repository.SubscribeToAdds(subscriptionName, n.newLogCallback)
	n.repository.SubscribeToDeletes(subscriptionName, n.deleteLogCallback)

	n.repository.ForEach(func(p *pel.PEL) bool {
		if n.enqueueRequired(p.ID()) {
			n.queue = append(n.queue, p.ID())
		}
		return false
	})

	n.host.SetResponseFunc(n.commandResponse)

	if len(n.queue) > 0 && n.system.HostUp() {
		n.logger.Debug("host is up at startup, sending queued PELs",
			"queue_size", len(n.queue),
		)
		n.doNewLogNotify()
	}
	return n
}

// Close unsubscribes from the repository and abandons any in-flight
// command. Must be called on the loop.
func (n *Notifier) Close() {
	n.repository.UnsubscribeFromAdds(subscriptionName)
	n.repository.UnsubscribeFromDeletes(subscriptionName)
	n.retryTimer.Stop()
	n.hostFullTimer.Stop()
	n.host.CancelCmd()
}

// --- Policy ---

// enqueueRequired reports whether a PEL should be queued for the host
// at all.
func (n *Notifier) enqueueRequired(id uint32) bool {
	attributes, ok := n.repository.PELAttributes(repository.LogID{PELID: id})
	if !ok {
		n.logger.Error("PEL to enqueue is not in the repository", "pel_id", pelIDAttr(id))
		return false
	}

	switch {
	case attributes.HostState == pel.TransmissionAcked,
		attributes.HostState == pel.TransmissionBadPEL:
		return false
	case attributes.Hidden() && attributes.HMCState == pel.TransmissionAcked:
		return false
	case attributes.ActionFlags.Has(pel.ActionDontReportToHost):
		return false
	}
	return n.system.HostPELEnabled()
}

// notifyRequired is rechecked just before sending, since attributes
// and HMC management can change while a PEL waits in the queue.
func (n *Notifier) notifyRequired(id uint32) bool {
	attributes, ok := n.repository.PELAttributes(repository.LogID{PELID: id})
	if !ok {
		return false
	}
	if attributes.HostState == pel.TransmissionAcked {
		return false
	}
	if attributes.Hidden() &&
		(attributes.HMCState == pel.TransmissionAcked || n.system.HMCManaged()) {
		return false
	}
	return true
}

// --- Repository callbacks ---

func (n *Notifier) newLogCallback(p *pel.PEL) {
	id := p.ID()
	if !n.enqueueRequired(id) {
		return
	}
	n.queue = append(n.queue, id)

	if !n.system.HostUp() || n.hostFull {
		return
	}

	busy := n.inProgress != 0 || n.host.CmdInProgress() || n.retryTimer.Enabled()
	first := len(n.queue) == 1
	gaveUp := n.retryCount >= MaxRetries
	if !busy && (first || gaveUp) {
		n.retryCount = 0
		n.scheduleDispatch()
	}
}

func (n *Notifier) deleteLogCallback(id uint32) {
	n.queue = removeID(n.queue, id)
	n.sent = removeID(n.sent, id)
	if n.inProgress == id {
		n.logger.Debug("canceling command for deleted PEL", "pel_id", pelIDAttr(id))
		n.inProgress = 0
		n.host.CancelCmd()
	}
}

// --- Dispatch ---

// scheduleDispatch runs doNewLogNotify on a later loop iteration.
// Repeated calls before it runs coalesce.
func (n *Notifier) scheduleDispatch() {
	if n.dispatchScheduled {
		return
	}
	n.dispatchScheduled = true
	n.loop.Post(func() {
		n.dispatchScheduled = false
		n.doNewLogNotify()
	})
}

// doNewLogNotify sends the command for the first queued PEL that still
// needs it.
func (n *Notifier) doNewLogNotify() {
	if !n.system.HostUp() || n.retryTimer.Enabled() || n.hostFullTimer.Enabled() {
		return
	}
	if n.inProgress != 0 {
		return
	}

	if n.retryCount >= MaxRetries {
		if n.retryCount == MaxRetries {
			n.logger.Error("giving up on sending PELs to the host",
				"retries", n.retryCount,
				"queue_size", len(n.queue),
			)
			n.host.CancelCmd()
		}
		return
	}

	var id uint32
	for len(n.queue) > 0 {
		candidate := n.queue[0]
		n.queue = n.queue[1:]
		if n.notifyRequired(candidate) {
			id = candidate
			break
		}
	}
	if id == 0 {
		return
	}

	attributes, ok := n.repository.PELAttributes(repository.LogID{PELID: id})
	if !ok {
		n.logger.Error("PEL is not in the repository, cannot notify host", "pel_id", pelIDAttr(id))
		return
	}

	if err := n.host.SendNewLogCmd(id, uint64(attributes.Size)); err != nil {
		n.logger.Warn("sending new log command failed",
			"pel_id", pelIDAttr(id),
			"retry_count", n.retryCount,
			"error", err,
		)
		n.queue = slices.Insert(n.queue, 0, id)
		n.inProgress = 0
		n.retryTimer.RestartOnce(n.host.SendRetryDelay())
		return
	}
	n.inProgress = id
}

// commandResponse handles the asynchronous outcome of the in-flight
// command.
func (n *Notifier) commandResponse(status ResponseStatus) {
	id := n.inProgress
	n.inProgress = 0
	if id == 0 {
		n.logger.Warn("new log response with no command in progress", "status", status.String())
		return
	}

	if status == ResponseSuccess {
		n.logger.Debug("host accepted new log command", "pel_id", pelIDAttr(id))
		n.retryCount = 0
		n.sent = append(n.sent, id)
		n.repository.SetHostTransState(id, pel.TransmissionSent)
		if !n.hostFull && len(n.queue) > 0 {
			n.doNewLogNotify()
		}
		return
	}

	n.logger.Error("new log command response failure",
		"pel_id", pelIDAttr(id),
		"retry_count", n.retryCount,
	)
	n.queue = slices.Insert(n.queue, 0, id)
	n.retryTimer.RestartOnce(n.host.ReceiveRetryDelay())
}

func (n *Notifier) retryTimerExpired() {
	if !n.system.HostUp() {
		return
	}
	n.retryCount++
	if len(n.queue) > 0 {
		n.logger.Info("retrying new log command",
			"pel_id", pelIDAttr(n.queue[0]),
			"retry_count", n.retryCount,
		)
	}
	n.doNewLogNotify()
}

func (n *Notifier) hostFullTimerExpired() {
	n.logger.Debug("host full timer expired, trying send again")
	n.doNewLogNotify()
}

// stopCommand abandons the in-flight command, returning its PEL to the
// front of the queue.
func (n *Notifier) stopCommand() {
	n.retryCount = 0
	if n.inProgress != 0 {
		n.queue = slices.Insert(n.queue, 0, n.inProgress)
		n.inProgress = 0
	}
	n.retryTimer.Stop()
	n.host.CancelCmd()
}

// --- Host events ---

// HostStateChanged handles a host power edge. On the way down every
// unacknowledged PEL is reset to new and requeued, since the host
// forgets anything it had not acknowledged.
func (n *Notifier) HostStateChanged(up bool) {
	n.retryCount = 0
	n.hostFull = false

	if up {
		if len(n.queue) > 0 {
			n.logger.Info("host is up, sending queued PELs", "queue_size", len(n.queue))
			n.doNewLogNotify()
		}
		return
	}

	n.stopCommand()
	for _, id := range n.sent {
		n.queue = append(n.queue, id)
		n.repository.SetHostTransState(id, pel.TransmissionNew)
	}
	if len(n.sent) > 0 {
		n.logger.Info("host is down, requeued unacknowledged PELs", "count", len(n.sent))
	}
	n.sent = nil
	n.hostFullTimer.Stop()
}

// AckPEL records the host's acknowledgment of a PEL. An ack also means
// the host has room again.
func (n *Notifier) AckPEL(id uint32) {
	n.repository.SetHostTransState(id, pel.TransmissionAcked)
	n.sent = removeID(n.sent, id)

	n.hostFullTimer.Stop()
	if n.hostFull {
		n.hostFull = false
		n.logger.Debug("host no longer full after ack", "pel_id", pelIDAttr(id))
		if len(n.queue) > 0 {
			n.scheduleDispatch()
		}
	}
}

// SetHostFull records that the host had no room for a PEL it was
// sent. The PEL goes back to the front of the queue, and further sends
// wait for an ack or for the host-full timer.
func (n *Notifier) SetHostFull(id uint32) {
	n.logger.Info("host reported full", "pel_id", pelIDAttr(id))
	n.hostFull = true

	if slices.Contains(n.sent, id) {
		n.sent = removeID(n.sent, id)
		n.repository.SetHostTransState(id, pel.TransmissionNew)
		if !slices.Contains(n.queue, id) {
			n.queue = slices.Insert(n.queue, 0, id)
		}
	}

	if !n.hostFullTimer.Enabled() {
		n.hostFullTimer.RestartOnce(n.host.HostFullRetryDelay())
	}
}

// SetBadPEL records that the host rejected a PEL as malformed. It is
// never sent again.
func (n *Notifier) SetBadPEL(id uint32) {
	n.logger.Error("host rejected PEL as malformed", "pel_id", pelIDAttr(id))
	n.sent = removeID(n.sent, id)
	n.repository.SetHostTransState(id, pel.TransmissionBadPEL)
}

// --- Introspection ---

// QueueSize returns the number of PELs waiting to be sent.
func (n *Notifier) QueueSize() int { return len(n.queue) }

// SentCount returns the number of PELs sent but not acknowledged.
func (n *Notifier) SentCount() int { return len(n.sent) }

// InProgress returns the PEL ID of the outstanding command, or 0.
func (n *Notifier) InProgress() uint32 { return n.inProgress }

// RetryCount returns the number of consecutive failed attempts.
func (n *Notifier) RetryCount() int { return n.retryCount }

// HostFull reports whether the host last said it was full.
func (n *Notifier) HostFull() bool { return n.hostFull }

// Queue returns a copy of the queued PEL IDs, front first.
func (n *Notifier) Queue() []uint32 { return slices.Clone(n.queue) }

func removeID(ids []uint32, id uint32) []uint32 {
	return slices.DeleteFunc(ids, func(candidate uint32) bool { return candidate == id })
}

func pelIDAttr(id uint32) string {
	return fmt.Sprintf("0x%08X", id)
}
