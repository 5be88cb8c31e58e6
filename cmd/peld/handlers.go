// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/pel/lib/codec"
	"github.com/bureau-foundation/pel/lib/control"
	"github.com/bureau-foundation/pel/lib/manager"
	"github.com/bureau-foundation/pel/lib/repository"
	"github.com/bureau-foundation/pel/lib/version"
)

func (d *daemon) registerHandlers() {
	handle(d, control.ActionStatus, d.handleStatus)
	handle(d, control.ActionList, d.handleList)
	handle(d, control.ActionGet, d.handleGet)
	handle(d, control.ActionAttributes, d.handleAttributes)
	handle(d, control.ActionCreate, d.handleCreate)
	handle(d, control.ActionAddRaw, d.handleAddRaw)
	handle(d, control.ActionErase, d.handleErase)
	handle(d, control.ActionHostAck, d.handleHostAck)
	handle(d, control.ActionHostReject, d.handleHostReject)
	handle(d, control.ActionHostState, d.handleHostState)
	handle(d, control.ActionPrune, d.handlePrune)
}

// handle registers fn for action. The request is decoded on the
// connection goroutine; fn runs on the event loop.
func handle[R any](d *daemon, action string, fn func(request R) (any, error)) {
	d.server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
		var request R
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid %s request: %w", action, err)
		}
		var (
			result any
			err    error
		)
		if callErr := d.loop.Call(ctx, func() { result, err = fn(request) }); callErr != nil {
			return nil, callErr
		}
		return result, err
	})
}

func (d *daemon) handleStatus(struct{}) (any, error) {
	n := d.manager.Notifier()
	return control.StatusResponse{
		Version:     version.Info(),
		Count:       d.repository.Count(),
		Sizes:       d.repository.Sizes(),
		SizeWarning: d.repository.SizeWarning(),
		MaxSize:     d.config.Repository.MaxSize,
		MaxCount:    d.config.Repository.MaxCount,
		HostUp:      d.data.HostUp(),
		HostFull:    n.HostFull(),
		QueueSize:   n.QueueSize(),
		SentCount:   n.SentCount(),
		InProgress:  n.InProgress(),
		RetryCount:  n.RetryCount(),
	}, nil
}

func (d *daemon) handleList(struct{}) (any, error) {
	return control.ListResponse{PELs: d.repository.List()}, nil
}

func (d *daemon) handleGet(request control.LogIDRequest) (any, error) {
	data, ok := d.repository.PELData(request.LogID())
	if !ok {
		return nil, fmt.Errorf("%s: %w", request.LogID(), repository.ErrNotFound)
	}
	return control.GetResponse{Data: data}, nil
}

func (d *daemon) handleAttributes(request control.LogIDRequest) (any, error) {
	attributes, ok := d.repository.PELAttributes(request.LogID())
	if !ok {
		return nil, fmt.Errorf("%s: %w", request.LogID(), repository.ErrNotFound)
	}
	return control.NewAttributesResponse(attributes), nil
}

func (d *daemon) handleCreate(request control.CreateRequest) (any, error) {
	level := manager.LevelError
	if request.Level != "" {
		var err error
		if level, err = manager.ParseLevel(request.Level); err != nil {
			return nil, err
		}
	}
	pelID, err := d.manager.Create(request.Message, level, request.AdditionalData)
	if err != nil {
		return nil, err
	}
	obmcID, _ := d.manager.OBMCIDFromPELID(pelID)
	return control.CreateResponse{PELID: pelID, OBMCID: obmcID}, nil
}

func (d *daemon) handleAddRaw(request control.AddRawRequest) (any, error) {
	pelID, err := d.manager.AddRaw(request.Data, request.OBMCID)
	if err != nil {
		return nil, err
	}
	obmcID, _ := d.manager.OBMCIDFromPELID(pelID)
	return control.CreateResponse{PELID: pelID, OBMCID: obmcID}, nil
}

func (d *daemon) handleErase(request control.LogIDRequest) (any, error) {
	obmcID := request.OBMCID
	if obmcID == 0 {
		var ok bool
		if obmcID, ok = d.manager.OBMCIDFromPELID(request.PELID); !ok {
			return control.EraseResponse{Removed: false}, nil
		}
	}
	return control.EraseResponse{Removed: d.manager.Erase(obmcID)}, nil
}

func (d *daemon) handleHostAck(request control.HostAckRequest) (any, error) {
	return nil, d.manager.HostAck(request.PELID)
}

func (d *daemon) handleHostReject(request control.HostRejectRequest) (any, error) {
	reason, err := manager.ParseRejectReason(request.Reason)
	if err != nil {
		return nil, err
	}
	return nil, d.manager.HostReject(request.PELID, reason)
}

func (d *daemon) handleHostState(request control.HostStateRequest) (any, error) {
	if request.Up == d.data.HostUp() {
		return nil, nil
	}
	d.data.SetHostUp(request.Up)
	d.manager.HostStateChanged(request.Up)
	d.logger.Info("host state changed", "host_up", request.Up)
	return nil, nil
}

func (d *daemon) handlePrune(struct{}) (any, error) {
	return control.PruneResponse{Removed: d.manager.Prune()}, nil
}
