// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pel/lib/archive"
	"github.com/bureau-foundation/pel/lib/atomicfile"
	"github.com/bureau-foundation/pel/lib/pel"
)

// Options configures a Repository.
type Options struct {
	// Root is the repository directory; PEL files live in Root/logs.
	Root string

	// MaxSize is the capacity in on-disk bytes.
	MaxSize uint64

	// MaxCount is the stored-PEL count above which SizeWarning fires
	// and Prune trims by count.
	MaxCount int

	// Archive, when set, receives a copy of every removed PEL.
	Archive *archive.Archive

	Logger *slog.Logger
}

// Repository is the on-disk PEL store and its attribute index.
type Repository struct {
	root          string
	logsDirectory string
	maxSize       uint64
	maxCount      int
	archive       *archive.Archive
	logger        *slog.Logger

	attributes map[uint32]*Attributes
	obmcIndex  map[uint32]uint32
	stats      SizeStats

	lastPELID uint32

	addSubscribers    []addSubscriber
	deleteSubscribers []deleteSubscriber
}

// New opens the repository at options.Root, creating its directories,
// and restores the index from the files already there.
func New(options Options) (*Repository, error) {
	r := &Repository{
		root:          options.Root,
		logsDirectory: filepath.Join(options.Root, "logs"),
		maxSize:       options.MaxSize,
		maxCount:      options.MaxCount,
		archive:       options.Archive,
		logger:        options.Logger,
		attributes:    make(map[uint32]*Attributes),
		obmcIndex:     make(map[uint32]uint32),
	}
	if err := os.MkdirAll(r.logsDirectory, 0o755); err != nil {
		return nil, &FileError{Op: "mkdir", Path: r.logsDirectory, Err: err}
	}
	if err := r.restore(); err != nil {
		return nil, err
	}
	if err := r.loadPELID(); err != nil {
		return nil, err
	}
	return r, nil
}

// restore rebuilds the index from the logs directory.
func (r *Repository) restore() error {
	entries, err := os.ReadDir(r.logsDirectory)
	if err != nil {
		return &FileError{Op: "readdir", Path: r.logsDirectory, Err: err}
	}

	var highestBMCID uint32
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(r.logsDirectory, entry.Name())
		if strings.HasPrefix(entry.Name(), ".") {
			if strings.Contains(entry.Name(), ".tmp-") {
				r.logger.Warn("removing temporary file left by an interrupted write", "path", path)
				if err := os.Remove(path); err != nil {
					r.logger.Error("removing temporary file", "path", path, "error", err)
				}
			}
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Error("reading PEL file during restore",
				"path", path,
				"error", err,
			)
			continue
		}

		decoded := pel.Unflatten(data)
		if !decoded.Valid() {
			r.logger.Error("removing invalid PEL file found during restore",
				"path", path,
				"size", len(data),
			)
			if err := os.Remove(path); err != nil {
				r.logger.Error("removing invalid PEL file",
					"path", path,
					"error", err,
				)
			}
			continue
		}

		if decoded.HostState() == pel.TransmissionSent {
			decoded.SetHostState(pel.TransmissionNew)
			data = decoded.Flatten()
			if err := atomicfile.Write(path, data, 0o644); err != nil {
				r.logger.Error("rewriting PEL with host state reset to new",
					"pel_id", pelIDAttr(decoded.ID()),
					"path", path,
					"error", err,
				)
			}
		}

		if existing, ok := r.attributes[decoded.ID()]; ok {
			// Directory order is chronological, so the file found
			// later is the newer copy.
			r.logger.Warn("removing older file with duplicate PEL ID",
				"pel_id", pelIDAttr(decoded.ID()),
				"path", existing.Path,
				"kept", path,
			)
			r.forget(existing)
			if err := os.Remove(existing.Path); err != nil {
				r.logger.Error("removing duplicate PEL file", "path", existing.Path, "error", err)
			}
		}

		r.index(decoded, entry.Name(), len(data))
		if decoded.Creator().IsBMC() && decoded.ID() > highestBMCID {
			highestBMCID = decoded.ID()
		}
	}

	r.logger.Info("restored PEL repository",
		"count", len(r.attributes),
		"total_size", r.stats.Total,
		"highest_bmc_pel_id", pelIDAttr(highestBMCID),
	)
	return nil
}

// index records attributes for a PEL whose file is already on disk.
func (r *Repository) index(decoded *pel.PEL, name string, size int) *Attributes {
	path := filepath.Join(r.logsDirectory, name)
	attributes := &Attributes{
		Name:        name,
		Path:        path,
		Size:        size,
		DiskSize:    r.diskSize(path, size),
		PELID:       decoded.ID(),
		OBMCID:      decoded.OBMCID(),
		PLID:        decoded.PLID(),
		Creator:     decoded.Creator(),
		LogType:     decoded.LogType(),
		Severity:    decoded.Severity(),
		ActionFlags: decoded.ActionFlags(),
		HostState:   decoded.HostState(),
		HMCState:    decoded.HMCState(),
	}
	r.attributes[attributes.PELID] = attributes
	if attributes.OBMCID != 0 {
		r.obmcIndex[attributes.OBMCID] = attributes.PELID
	}
	r.stats.add(attributes)
	return attributes
}

// forget drops attributes from the index and the size totals.
func (r *Repository) forget(attributes *Attributes) {
	r.stats.subtract(attributes)
	delete(r.attributes, attributes.PELID)
	if r.obmcIndex[attributes.OBMCID] == attributes.PELID {
		delete(r.obmcIndex, attributes.OBMCID)
	}
}

// diskSize returns the space a file occupies: allocated 512-byte blocks,
// not its length. Falls back to the logical size if stat fails.
func (r *Repository) diskSize(path string, logicalSize int) uint64 {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		r.logger.Error("stat of PEL file failed, using logical size",
			"path", path,
			"error", err,
		)
		return uint64(logicalSize)
	}
	return uint64(stat.Blocks) * 512
}

// Add stores a PEL. Its IDs are used as given; both transmission
// states are reset to new. A PEL with the same PEL ID replaces the
// stored one. Subscribers are called after the file is written.
func (r *Repository) Add(p *pel.PEL) error {
	p.SetHostState(pel.TransmissionNew)
	p.SetHMCState(pel.TransmissionNew)

	name := p.FileName()
	path := filepath.Join(r.logsDirectory, name)
	data := p.Flatten()
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		fileErr := &FileError{Op: "write", Path: path, Err: err}
		r.logger.Error("writing PEL file",
			"pel_id", pelIDAttr(p.ID()),
			"error", fileErr,
		)
		return fileErr
	}

	if existing, ok := r.attributes[p.ID()]; ok {
		r.forget(existing)
		if existing.Path != path {
			if err := os.Remove(existing.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				r.logger.Error("removing replaced PEL file", "path", existing.Path, "error", err)
			}
		}
	}

	attributes := r.index(p, name, len(data))
	r.logger.Debug("added PEL",
		"pel_id", pelIDAttr(attributes.PELID),
		"obmc_id", attributes.OBMCID,
		"disk_size", attributes.DiskSize,
	)

	for _, subscriber := range slices.Clone(r.addSubscribers) {
		r.callSubscriber(subscriber.name, func() { subscriber.callback(p) })
	}
	return nil
}

// Remove deletes the PEL matching id and returns its full LogID, or
// false if nothing matched.
func (r *Repository) Remove(id LogID) (LogID, bool) {
	attributes, ok := r.find(id)
	if !ok {
		return LogID{}, false
	}
	removed := LogID{PELID: attributes.PELID, OBMCID: attributes.OBMCID}

	r.forget(attributes)

	if r.archive != nil {
		r.archiveFile(attributes)
	}
	if err := os.Remove(attributes.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Error("removing PEL file",
			"pel_id", pelIDAttr(removed.PELID),
			"error", &FileError{Op: "remove", Path: attributes.Path, Err: err},
		)
	}

	for _, subscriber := range slices.Clone(r.deleteSubscribers) {
		r.callSubscriber(subscriber.name, func() { subscriber.callback(removed.PELID) })
	}
	return removed, true
}

func (r *Repository) archiveFile(attributes *Attributes) {
	data, err := os.ReadFile(attributes.Path)
	if err != nil {
		r.logger.Error("reading PEL for archive",
			"pel_id", pelIDAttr(attributes.PELID),
			"error", err,
		)
		return
	}
	if err := r.archive.Store(attributes.Name, data); err != nil {
		r.logger.Error("archiving removed PEL",
			"pel_id", pelIDAttr(attributes.PELID),
			"error", err,
		)
	}
}

func (r *Repository) callSubscriber(name string, callback func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("repository subscriber panicked",
				"subscriber", name,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	callback()
}

func (r *Repository) find(id LogID) (*Attributes, bool) {
	if id.PELID != 0 {
		attributes, ok := r.attributes[id.PELID]
		return attributes, ok
	}
	if id.OBMCID != 0 {
		pelID, ok := r.obmcIndex[id.OBMCID]
		if !ok {
			return nil, false
		}
		attributes, ok := r.attributes[pelID]
		return attributes, ok
	}
	return nil, false
}

// HasPEL reports whether a PEL matching id is stored.
func (r *Repository) HasPEL(id LogID) bool {
	_, ok := r.find(id)
	return ok
}

// Count returns the number of stored PELs.
func (r *Repository) Count() int {
	return len(r.attributes)
}

// Sizes returns the current size totals.
func (r *Repository) Sizes() SizeStats {
	return r.stats
}

// PELData returns the stored bytes of the PEL matching id.
func (r *Repository) PELData(id LogID) ([]byte, bool) {
	attributes, ok := r.find(id)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(attributes.Path)
	if err != nil {
		r.logger.Error("reading PEL file",
			"pel_id", pelIDAttr(attributes.PELID),
			"error", &FileError{Op: "read", Path: attributes.Path, Err: err},
		)
		return nil, false
	}
	return data, true
}

// PELFile opens the file of the PEL matching id. The caller owns the
// returned file and must close it.
func (r *Repository) PELFile(id LogID) (*os.File, error) {
	attributes, ok := r.find(id)
	if !ok {
		return nil, fmt.Errorf("%v: %w", id, ErrNotFound)
	}
	file, err := os.Open(attributes.Path)
	if err != nil {
		return nil, &FileError{Op: "open", Path: attributes.Path, Err: err}
	}
	return file, nil
}

// ForEach decodes every stored PEL, oldest first, and calls fn with
// it. Iteration stops when fn returns true. Files that cannot be read
// are logged and skipped.
func (r *Repository) ForEach(fn func(*pel.PEL) bool) {
	for _, attributes := range r.sortedAttributes() {
		data, err := os.ReadFile(attributes.Path)
		if err != nil {
			r.logger.Error("reading PEL file",
				"pel_id", pelIDAttr(attributes.PELID),
				"error", err,
			)
			continue
		}
		if fn(pel.Unflatten(data)) {
			return
		}
	}
}

// List returns copies of every PEL's attributes, oldest first.
func (r *Repository) List() []Attributes {
	sorted := r.sortedAttributes()
	list := make([]Attributes, len(sorted))
	for i, attributes := range sorted {
		list[i] = *attributes
	}
	return list
}

func (r *Repository) sortedAttributes() []*Attributes {
	sorted := make([]*Attributes, 0, len(r.attributes))
	for _, attributes := range r.attributes {
		sorted = append(sorted, attributes)
	}
	slices.SortFunc(sorted, func(a, b *Attributes) int { return strings.Compare(a.Name, b.Name) })
	return sorted
}

// PELAttributes returns a copy of the attributes of the PEL matching
// id.
func (r *Repository) PELAttributes(id LogID) (Attributes, bool) {
	attributes, ok := r.find(id)
	if !ok {
		return Attributes{}, false
	}
	return *attributes, true
}

// OBMCIDFor returns the OBMC ID of a PEL.
func (r *Repository) OBMCIDFor(pelID uint32) (uint32, bool) {
	attributes, ok := r.attributes[pelID]
	if !ok {
		return 0, false
	}
	return attributes.OBMCID, true
}

// PELIDFor returns the PEL ID for an OBMC ID.
func (r *Repository) PELIDFor(obmcID uint32) (uint32, bool) {
	pelID, ok := r.obmcIndex[obmcID]
	return pelID, ok
}

// SubscribeToAdds registers fn to be called with every added PEL.
// Subscribing again under the same name replaces the earlier callback
// in its original position.
func (r *Repository) SubscribeToAdds(name string, fn func(*pel.PEL)) {
	for i := range r.addSubscribers {
		if r.addSubscribers[i].name == name {
			r.addSubscribers[i].callback = fn
			return
		}
	}
	r.addSubscribers = append(r.addSubscribers, addSubscriber{name: name, callback: fn})
}

// UnsubscribeFromAdds removes the add subscriber registered as name.
func (r *Repository) UnsubscribeFromAdds(name string) {
	r.addSubscribers = slices.DeleteFunc(r.addSubscribers, func(s addSubscriber) bool { return s.name == name })
}

// SubscribeToDeletes registers fn to be called with the PEL ID of
// every removed PEL.
func (r *Repository) SubscribeToDeletes(name string, fn func(pelID uint32)) {
	for i := range r.deleteSubscribers {
		if r.deleteSubscribers[i].name == name {
			r.deleteSubscribers[i].callback = fn
			return
		}
	}
	r.deleteSubscribers = append(r.deleteSubscribers, deleteSubscriber{name: name, callback: fn})
}

// UnsubscribeFromDeletes removes the delete subscriber registered as
// name.
func (r *Repository) UnsubscribeFromDeletes(name string) {
	r.deleteSubscribers = slices.DeleteFunc(r.deleteSubscribers, func(s deleteSubscriber) bool { return s.name == name })
}

// SetHostTransState records a new host transmission state for a PEL,
// in the cache and in its file. Unchanged states are not rewritten. A
// failed file update is logged; the cache is updated regardless.
func (r *Repository) SetHostTransState(pelID uint32, state pel.TransmissionState) {
	r.setState(pelID, state, "host",
		func(a *Attributes) *pel.TransmissionState { return &a.HostState },
		(*pel.PEL).SetHostState)
}

// SetHMCTransState is SetHostTransState for the HMC state.
func (r *Repository) SetHMCTransState(pelID uint32, state pel.TransmissionState) {
	r.setState(pelID, state, "hmc",
		func(a *Attributes) *pel.TransmissionState { return &a.HMCState },
		(*pel.PEL).SetHMCState)
}

func (r *Repository) setState(pelID uint32, state pel.TransmissionState, destination string,
	field func(*Attributes) *pel.TransmissionState, set func(*pel.PEL, pel.TransmissionState)) {
	attributes, ok := r.attributes[pelID]
	if !ok {
		r.logger.Warn("transmission state update for unknown PEL",
			"pel_id", pelIDAttr(pelID),
			"destination", destination,
		)
		return
	}
	current := field(attributes)
	if *current == state {
		return
	}

	if err := r.rewrite(attributes, func(p *pel.PEL) { set(p, state) }); err != nil {
		r.logger.Error("persisting transmission state",
			"pel_id", pelIDAttr(pelID),
			"destination", destination,
			"state", state.String(),
			"error", err,
		)
	}
	*current = state
}

// rewrite reads a PEL file, applies patch, and writes it back.
func (r *Repository) rewrite(attributes *Attributes, patch func(*pel.PEL)) error {
	data, err := os.ReadFile(attributes.Path)
	if err != nil {
		return &FileError{Op: "read", Path: attributes.Path, Err: err}
	}
	decoded := pel.Unflatten(data)
	if !decoded.Valid() {
		return &FileError{Op: "decode", Path: attributes.Path, Err: errors.New("stored PEL is no longer valid")}
	}
	patch(decoded)
	if err := atomicfile.Write(attributes.Path, decoded.Flatten(), 0o644); err != nil {
		return &FileError{Op: "write", Path: attributes.Path, Err: err}
	}
	return nil
}
