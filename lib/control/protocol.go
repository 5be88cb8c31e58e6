// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import "github.com/bureau-foundation/pel/lib/repository"

// Actions served by peld on its control socket.
const (
	ActionStatus     = "status"
	ActionList       = "list"
	ActionGet        = "get"
	ActionAttributes = "attributes"
	ActionCreate     = "create"
	ActionAddRaw     = "add-raw"
	ActionErase      = "erase"
	ActionHostAck    = "host-ack"
	ActionHostReject = "host-reject"
	ActionHostState  = "host-state"
	ActionPrune      = "prune"
)

// ActionNewLog is served by the host agent: peld tells the host that a
// PEL is available.
const ActionNewLog = "new-log"

// LogIDRequest selects one PEL for get, attributes and erase. Either
// field may be zero.
type LogIDRequest struct {
	PELID  uint32 `cbor:"pel_id"`
	OBMCID uint32 `cbor:"obmc_id"`
}

// LogID converts the request to a repository key.
func (r LogIDRequest) LogID() repository.LogID {
	return repository.LogID{PELID: r.PELID, OBMCID: r.OBMCID}
}

// CreateRequest asks peld to create a BMC PEL from a registry entry.
type CreateRequest struct {
	Message        string            `cbor:"message"`
	Level          string            `cbor:"level"`
	AdditionalData map[string]string `cbor:"additional_data"`
}

// AddRawRequest hands peld a flattened PEL from another creator.
type AddRawRequest struct {
	Data   []byte `cbor:"data"`
	OBMCID uint32 `cbor:"obmc_id"`
}

// CreateResponse identifies a stored PEL after create or add-raw.
type CreateResponse struct {
	PELID  uint32 `cbor:"pel_id"`
	OBMCID uint32 `cbor:"obmc_id"`
}

// HostAckRequest reports that the host acknowledged a PEL.
type HostAckRequest struct {
	PELID uint32 `cbor:"pel_id"`
}

// HostRejectRequest reports that the host refused a PEL. Reason is
// "full" or "bad".
type HostRejectRequest struct {
	PELID  uint32 `cbor:"pel_id"`
	Reason string `cbor:"reason"`
}

// HostStateRequest reports a host power edge.
type HostStateRequest struct {
	Up bool `cbor:"up"`
}

// GetResponse carries one PEL's stored bytes.
type GetResponse struct {
	Data []byte `cbor:"data"`
}

// EraseResponse reports whether erase found the PEL.
type EraseResponse struct {
	Removed bool `cbor:"removed"`
}

// PruneResponse lists the OBMC IDs a prune removed.
type PruneResponse struct {
	Removed []uint32 `cbor:"removed"`
}

// ListResponse holds every stored PEL's attributes, oldest first.
type ListResponse struct {
	PELs []repository.Attributes `cbor:"pels"`
}

// StatusResponse summarizes the daemon.
type StatusResponse struct {
	Version     string               `cbor:"version"`
	Count       int                  `cbor:"count"`
	Sizes       repository.SizeStats `cbor:"sizes"`
	SizeWarning bool                 `cbor:"size_warning"`
	MaxSize     uint64               `cbor:"max_size"`
	MaxCount    int                  `cbor:"max_count"`

	HostUp     bool   `cbor:"host_up"`
	HostFull   bool   `cbor:"host_full"`
	QueueSize  int    `cbor:"queue_size"`
	SentCount  int    `cbor:"sent_count"`
	InProgress uint32 `cbor:"in_progress"`
	RetryCount int    `cbor:"retry_count"`
}

// NewLogRequest tells the host agent that a PEL is available.
type NewLogRequest struct {
	PELID uint32 `cbor:"pel_id"`
	Size  uint64 `cbor:"size"`
}

// AttributesResponse is one PEL's cached attributes plus its decoded
// severity name, for clients that do not link the codec.
type AttributesResponse struct {
	Attributes   repository.Attributes `cbor:"attributes"`
	SeverityName string                `cbor:"severity_name"`
	Serviceable  bool                  `cbor:"serviceable"`
}

// NewAttributesResponse fills the derived fields.
func NewAttributesResponse(attributes repository.Attributes) AttributesResponse {
	return AttributesResponse{
		Attributes:   attributes,
		SeverityName: attributes.Severity.String(),
		Serviceable:  attributes.IsServiceable(),
	}
}
