// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bureau-foundation/pel/lib/archive"
	"github.com/bureau-foundation/pel/lib/clock"
	"github.com/bureau-foundation/pel/lib/config"
	"github.com/bureau-foundation/pel/lib/control"
	"github.com/bureau-foundation/pel/lib/eventloop"
	"github.com/bureau-foundation/pel/lib/hostsocket"
	"github.com/bureau-foundation/pel/lib/manager"
	"github.com/bureau-foundation/pel/lib/registry"
	"github.com/bureau-foundation/pel/lib/repository"
)

// daemon wires one PEL subsystem instance to its control socket.
type daemon struct {
	config     *config.Config
	loop       *eventloop.Loop
	repository *repository.Repository
	data       *manager.StaticData
	host       *hostsocket.Host
	manager    *manager.Manager
	server     *control.Server
	logger     *slog.Logger
}

func newDaemon(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*daemon, error) {
	entries, err := registry.Load(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("loading message registry: %w", err)
	}

	var pelArchive *archive.Archive
	if cfg.Repository.Archive.Enabled {
		compression, err := archive.ParseCompression(cfg.Repository.Archive.Compression)
		if err != nil {
			return nil, err
		}
		pelArchive, err = archive.New(filepath.Join(cfg.Paths.Root, "archive"), compression,
			cfg.Repository.Archive.MaxSize, logger.With("component", "archive"))
		if err != nil {
			return nil, fmt.Errorf("opening archive: %w", err)
		}
	}

	repo, err := repository.New(repository.Options{
		Root:     cfg.Paths.Root,
		MaxSize:  cfg.Repository.MaxSize,
		MaxCount: cfg.Repository.MaxCount,
		Archive:  pelArchive,
		Logger:   logger.With("component", "repository"),
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	d := &daemon{
		config:     cfg,
		loop:       eventloop.New(clk, logger.With("component", "loop")),
		repository: repo,
		data:       manager.NewStaticData(cfg.System, cfg.Host),
		server:     control.NewServer(cfg.ControlSocketPath(), logger.With("component", "control")),
		logger:     logger,
	}
	d.host = hostsocket.New(hostsocket.Config{
		Loop:               d.loop,
		SocketPath:         cfg.Host.Socket,
		ResponseTimeout:    cfg.Host.ResponseTimeout,
		SendRetryDelay:     cfg.Host.SendRetryDelay,
		ReceiveRetryDelay:  cfg.Host.ReceiveRetryDelay,
		HostFullRetryDelay: cfg.Host.HostFullRetryDelay,
		Logger:             logger.With("component", "hostsocket"),
	})

	// The loop is not running yet, so this goroutine owns its state.
	d.manager = manager.New(manager.Config{
		Loop:       d.loop,
		Root:       cfg.Paths.Root,
		Repository: repo,
		Registry:   entries,
		Data:       d.data,
		Host:       d.host,
		Devices:    d.data,
		OnPruned:   d.pruned,
		Logger:     logger.With("component", "manager"),
	})

	d.registerHandlers()
	return d, nil
}

// run serves the control socket and the event loop until ctx is done.
func (d *daemon) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		d.loop.Run(ctx)
	}()

	serveErr := d.server.Serve(ctx)
	cancel()
	<-loopDone

	// The loop has stopped; shut down from this goroutine.
	d.manager.Close()
	d.host.Close()
	return serveErr
}

func (d *daemon) pruned(obmcIDs []uint32) {
	d.logger.Debug("pruned PELs", "obmc_ids", obmcIDs)
}
