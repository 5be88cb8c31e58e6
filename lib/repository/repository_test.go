// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/pel/lib/archive"
	"github.com/bureau-foundation/pel/lib/pel"
	"github.com/bureau-foundation/pel/lib/testutil"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pelSpec struct {
	id       uint32
	obmcID   uint32
	creator  pel.CreatorID
	severity pel.Severity
	flags    pel.ActionFlags
	// offset orders commit times, and so file names.
	offset time.Duration
}

func makePEL(t *testing.T, spec pelSpec) *pel.PEL {
	t.Helper()
	if spec.creator == 0 {
		spec.creator = pel.CreatorBMC
	}
	commit := pel.BCDTimeFromTime(baseTime.Add(spec.offset))
	privateHeader := pel.NewPrivateHeader(spec.creator, spec.id, spec.obmcID, commit, [8]byte{'t', 'e', 's', 't'})
	userHeader := pel.NewUserHeader(0x20, 0x03, spec.severity, 0x00, spec.flags)
	src := pel.NewSRC(pel.SRCOptions{Type: 0xBD, ReasonCode: 0x8D10}, discardLogger())
	return pel.New(privateHeader, userHeader, src)
}

func infoPEL(t *testing.T, id, obmcID uint32, offset time.Duration) *pel.PEL {
	return makePEL(t, pelSpec{
		id: id, obmcID: obmcID, offset: offset,
		severity: pel.SeverityNonError, flags: pel.ActionHidden,
	})
}

func serviceablePEL(t *testing.T, id, obmcID uint32, offset time.Duration) *pel.PEL {
	return makePEL(t, pelSpec{
		id: id, obmcID: obmcID, offset: offset,
		severity: pel.SeverityPredictive, flags: pel.ActionServiceAction | pel.ActionReport,
	})
}

func openRepository(t *testing.T, root string, options Options) *Repository {
	t.Helper()
	options.Root = root
	if options.Logger == nil {
		options.Logger = discardLogger()
	}
	repository, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return repository
}

func mustAdd(t *testing.T, repository *Repository, p *pel.PEL) {
	t.Helper()
	if err := repository.Add(p); err != nil {
		t.Fatalf("Add(0x%08X): %v", p.ID(), err)
	}
}

func TestAddAndQuery(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})
	p := serviceablePEL(t, 0x50000001, 11, 0)
	p.SetHostState(pel.TransmissionAcked)
	mustAdd(t, repository, p)

	for _, id := range []LogID{{PELID: 0x50000001}, {OBMCID: 11}, {PELID: 0x50000001, OBMCID: 11}} {
		if !repository.HasPEL(id) {
			t.Errorf("HasPEL(%v) = false", id)
		}
	}
	if repository.HasPEL(LogID{PELID: 0x50000002}) || repository.HasPEL(LogID{}) {
		t.Error("HasPEL matched an absent ID")
	}

	data, ok := repository.PELData(LogID{OBMCID: 11})
	if !ok {
		t.Fatal("PELData not found")
	}
	if !bytes.Equal(data, p.Flatten()) {
		t.Error("PELData differs from the added PEL")
	}

	attributes, ok := repository.PELAttributes(LogID{PELID: 0x50000001})
	if !ok {
		t.Fatal("PELAttributes not found")
	}
	if attributes.HostState != pel.TransmissionNew || attributes.HMCState != pel.TransmissionNew {
		t.Errorf("states = (%s, %s), want both new", attributes.HostState, attributes.HMCState)
	}
	if attributes.Size != len(data) || attributes.OBMCID != 11 || !attributes.IsServiceable() {
		t.Errorf("unexpected attributes %+v", attributes)
	}
	if attributes.Name != p.FileName() {
		t.Errorf("Name = %q, want %q", attributes.Name, p.FileName())
	}

	file, err := repository.PELFile(LogID{PELID: 0x50000001})
	if err != nil {
		t.Fatalf("PELFile: %v", err)
	}
	fromFile, err := io.ReadAll(file)
	file.Close()
	if err != nil || !bytes.Equal(fromFile, data) {
		t.Errorf("PELFile contents differ (err %v)", err)
	}
	if _, err := repository.PELFile(LogID{PELID: 0x5000FFFF}); !errors.Is(err, ErrNotFound) {
		t.Errorf("PELFile of absent ID: err = %v, want ErrNotFound", err)
	}

	if pelID, ok := repository.PELIDFor(11); !ok || pelID != 0x50000001 {
		t.Errorf("PELIDFor(11) = 0x%08X, %v", pelID, ok)
	}
	if obmcID, ok := repository.OBMCIDFor(0x50000001); !ok || obmcID != 11 {
		t.Errorf("OBMCIDFor = %d, %v", obmcID, ok)
	}

	sizes := repository.Sizes()
	if sizes.Total != attributes.DiskSize || sizes.BMC != sizes.Total || sizes.BMCServiceable != sizes.Total {
		t.Errorf("sizes = %+v, disk size %d", sizes, attributes.DiskSize)
	}
}

func TestAddReplacesSamePELID(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})
	mustAdd(t, repository, infoPEL(t, 0x50000001, 1, 0))
	replacement := serviceablePEL(t, 0x50000001, 2, time.Minute)
	mustAdd(t, repository, replacement)

	if repository.Count() != 1 {
		t.Fatalf("Count = %d, want 1", repository.Count())
	}
	if repository.HasPEL(LogID{OBMCID: 1}) {
		t.Error("old OBMC ID still resolves")
	}
	files := testutil.ListDir(t, filepath.Join(repository.root, "logs"))
	if !slices.Equal(files, []string{replacement.FileName()}) {
		t.Errorf("logs = %v, want only %s", files, replacement.FileName())
	}
	sizes := repository.Sizes()
	if sizes.BMCInfo != 0 || sizes.BMCServiceable != sizes.Total {
		t.Errorf("sizes after replace = %+v", sizes)
	}
}

func TestAddWriteFailure(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})
	if err := os.RemoveAll(repository.logsDirectory); err != nil {
		t.Fatal(err)
	}

	err := repository.Add(infoPEL(t, 0x50000001, 1, 0))
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("Add error = %v, want *FileError", err)
	}
	if fileErr.Op != "write" || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("FileError = %v", fileErr)
	}
	if repository.Count() != 0 {
		t.Error("failed add was indexed")
	}
}

func TestRemove(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})
	p := infoPEL(t, 0x50000001, 5, 0)
	mustAdd(t, repository, p)

	id, ok := repository.Remove(LogID{OBMCID: 5})
	if !ok || id != (LogID{PELID: 0x50000001, OBMCID: 5}) {
		t.Fatalf("Remove = %v, %v", id, ok)
	}
	if _, ok := repository.Remove(LogID{OBMCID: 5}); ok {
		t.Error("second Remove reported success")
	}
	if repository.Count() != 0 || repository.Sizes() != (SizeStats{}) {
		t.Errorf("after remove: count %d sizes %+v", repository.Count(), repository.Sizes())
	}
	if _, err := os.Stat(filepath.Join(repository.logsDirectory, p.FileName())); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
}

func TestRemoveArchives(t *testing.T) {
	root := t.TempDir()
	store, err := archive.New(filepath.Join(root, "archive"), archive.CompressionZstd, 0, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	repository := openRepository(t, root, Options{Archive: store})
	p := serviceablePEL(t, 0x50000001, 1, 0)
	mustAdd(t, repository, p)
	want, _ := repository.PELData(LogID{PELID: 0x50000001})

	if _, ok := repository.Remove(LogID{PELID: 0x50000001}); !ok {
		t.Fatal("Remove failed")
	}
	got, err := store.Read(p.FileName())
	if err != nil {
		t.Fatalf("archive Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("archived bytes differ from the stored PEL")
	}
}

func TestSubscribers(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})

	var calls []string
	repository.SubscribeToAdds("first", func(p *pel.PEL) { calls = append(calls, "first") })
	repository.SubscribeToAdds("panics", func(p *pel.PEL) { panic("subscriber failure") })
	repository.SubscribeToAdds("last", func(p *pel.PEL) { calls = append(calls, "last") })
	repository.SubscribeToAdds("first", func(p *pel.PEL) { calls = append(calls, "first-replaced") })

	var deleted []uint32
	repository.SubscribeToDeletes("deletes", func(pelID uint32) { deleted = append(deleted, pelID) })
	repository.SubscribeToDeletes("panics", func(uint32) { panic("delete failure") })

	mustAdd(t, repository, infoPEL(t, 0x50000001, 1, 0))
	if !slices.Equal(calls, []string{"first-replaced", "last"}) {
		t.Errorf("add calls = %v", calls)
	}

	repository.Remove(LogID{PELID: 0x50000001})
	if !slices.Equal(deleted, []uint32{0x50000001}) {
		t.Errorf("deleted = %v", deleted)
	}

	calls = nil
	repository.UnsubscribeFromAdds("last")
	repository.UnsubscribeFromAdds("missing")
	repository.UnsubscribeFromDeletes("deletes")
	mustAdd(t, repository, infoPEL(t, 0x50000002, 2, 0))
	repository.Remove(LogID{PELID: 0x50000002})
	if !slices.Equal(calls, []string{"first-replaced"}) {
		t.Errorf("add calls after unsubscribe = %v", calls)
	}
	if len(deleted) != 1 {
		t.Errorf("delete subscriber called after unsubscribe: %v", deleted)
	}
}

func TestForEachAndList(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})
	mustAdd(t, repository, infoPEL(t, 0x50000003, 3, 3*time.Second))
	mustAdd(t, repository, infoPEL(t, 0x50000001, 1, 1*time.Second))
	mustAdd(t, repository, infoPEL(t, 0x50000002, 2, 2*time.Second))

	var seen []uint32
	repository.ForEach(func(p *pel.PEL) bool {
		seen = append(seen, p.ID())
		return false
	})
	if !slices.Equal(seen, []uint32{0x50000001, 0x50000002, 0x50000003}) {
		t.Errorf("ForEach order = %X", seen)
	}

	seen = nil
	repository.ForEach(func(p *pel.PEL) bool {
		seen = append(seen, p.ID())
		return true
	})
	if len(seen) != 1 {
		t.Errorf("ForEach did not stop: %X", seen)
	}

	list := repository.List()
	if len(list) != 3 || list[0].OBMCID != 1 || list[2].OBMCID != 3 {
		t.Errorf("List = %+v", list)
	}
}

func TestTransmissionStatePersists(t *testing.T) {
	root := t.TempDir()
	repository := openRepository(t, root, Options{})
	mustAdd(t, repository, infoPEL(t, 0x50000001, 1, 0))

	repository.SetHostTransState(0x50000001, pel.TransmissionAcked)
	repository.SetHMCTransState(0x50000001, pel.TransmissionSent)
	repository.SetHostTransState(0x5000FFFF, pel.TransmissionAcked)

	data, _ := repository.PELData(LogID{PELID: 0x50000001})
	decoded := pel.Unflatten(data)
	if decoded.HostState() != pel.TransmissionAcked || decoded.HMCState() != pel.TransmissionSent {
		t.Errorf("file states = (%s, %s)", decoded.HostState(), decoded.HMCState())
	}

	reopened := openRepository(t, root, Options{})
	attributes, _ := reopened.PELAttributes(LogID{PELID: 0x50000001})
	if attributes.HostState != pel.TransmissionAcked || attributes.HMCState != pel.TransmissionSent {
		t.Errorf("restored states = (%s, %s)", attributes.HostState, attributes.HMCState)
	}
}

func TestTransmissionStateCacheSurvivesWriteFailure(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{})
	p := infoPEL(t, 0x50000001, 1, 0)
	mustAdd(t, repository, p)
	if err := os.Remove(filepath.Join(repository.logsDirectory, p.FileName())); err != nil {
		t.Fatal(err)
	}

	repository.SetHostTransState(0x50000001, pel.TransmissionSent)
	attributes, _ := repository.PELAttributes(LogID{PELID: 0x50000001})
	if attributes.HostState != pel.TransmissionSent {
		t.Errorf("cached host state = %s, want sent", attributes.HostState)
	}
}

func TestRestore(t *testing.T) {
	root := t.TempDir()
	repository := openRepository(t, root, Options{})
	mustAdd(t, repository, infoPEL(t, 0x50000001, 1, 0))
	mustAdd(t, repository, serviceablePEL(t, 0x50000002, 2, time.Second))
	repository.SetHostTransState(0x50000001, pel.TransmissionSent)
	repository.SetHostTransState(0x50000002, pel.TransmissionAcked)
	sizes := repository.Sizes()
	ackedData, ok := repository.PELData(LogID{OBMCID: 2})
	if !ok {
		t.Fatal("acked PEL not stored")
	}

	logs := filepath.Join(root, "logs")
	testutil.WriteFile(t, logs, "2026031400000000_DEADBEEF", []byte("not a PEL"))
	leftover := ".2026031409000200_50000003.tmp-1234"
	testutil.WriteFile(t, logs, leftover, []byte("partial"))

	reopened := openRepository(t, root, Options{})
	if reopened.Count() != 2 {
		t.Fatalf("restored Count = %d, want 2", reopened.Count())
	}
	if reopened.Sizes() != sizes {
		t.Errorf("restored sizes %+v, want %+v", reopened.Sizes(), sizes)
	}
	if _, err := os.Stat(filepath.Join(logs, "2026031400000000_DEADBEEF")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("invalid file not deleted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(logs, leftover)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temporary file not deleted: %v", err)
	}

	first, _ := reopened.PELAttributes(LogID{OBMCID: 1})
	if first.HostState != pel.TransmissionNew {
		t.Errorf("sent PEL restored as %s, want new", first.HostState)
	}
	data, _ := reopened.PELData(LogID{OBMCID: 1})
	if pel.Unflatten(data).HostState() != pel.TransmissionNew {
		t.Error("sent-to-new reset was not written back")
	}
	second, _ := reopened.PELAttributes(LogID{OBMCID: 2})
	if second.HostState != pel.TransmissionAcked {
		t.Errorf("acked PEL restored as %s", second.HostState)
	}
	restoredData, _ := reopened.PELData(LogID{OBMCID: 2})
	if !bytes.Equal(restoredData, ackedData) {
		t.Error("acked PEL bytes changed across restart")
	}
}

func TestNextPELID(t *testing.T) {
	root := t.TempDir()
	repository := openRepository(t, root, Options{})

	for _, want := range []uint32{0x50000001, 0x50000002} {
		got, err := repository.NextPELID()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("NextPELID = 0x%08X, want 0x%08X", got, want)
		}
	}

	reopened := openRepository(t, root, Options{})
	if got, _ := reopened.NextPELID(); got != 0x50000003 {
		t.Errorf("after reopen NextPELID = 0x%08X, want 0x50000003", got)
	}

	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], 0x00FFFFFE)
	testutil.WriteFile(t, root, "pelID", counter[:])
	wrapping := openRepository(t, root, Options{})
	for _, want := range []uint32{0x50FFFFFF, 0x50000001} {
		if got, _ := wrapping.NextPELID(); got != want {
			t.Errorf("NextPELID = 0x%08X, want 0x%08X", got, want)
		}
	}
}

// measureDiskSize returns the on-disk size of one small PEL file on
// the test filesystem.
func measureDiskSize(t *testing.T) uint64 {
	t.Helper()
	sample := openRepository(t, t.TempDir(), Options{})
	mustAdd(t, sample, infoPEL(t, 0x50000001, 1, 0))
	size := sample.Sizes().Total
	if size == 0 {
		t.Skip("filesystem reports zero allocated blocks for small files")
	}
	return size
}

func TestPruneBySize(t *testing.T) {
	diskSize := measureDiskSize(t)
	// Caps: 15% is 2.5 files, 30% is 5 files.
	maxSize := diskSize * 50 / 3
	repository := openRepository(t, t.TempDir(), Options{MaxSize: maxSize})

	for i := range uint32(4) {
		mustAdd(t, repository, infoPEL(t, 0x50000001+i, 1+i, time.Duration(i)*time.Second))
	}
	for i := range uint32(3) {
		mustAdd(t, repository, serviceablePEL(t, 0x50000101+i, 101+i, time.Duration(10+i)*time.Second))
	}
	// Acked by the host: pruned before the older ones.
	repository.SetHostTransState(0x50000003, pel.TransmissionAcked)

	removed := repository.Prune()
	if !slices.Equal(removed, []uint32{3, 1}) {
		t.Errorf("removed OBMC IDs = %v, want [3 1]", removed)
	}
	sizes := repository.Sizes()
	if sizes.BMCInfo > maxSize*15/100 {
		t.Errorf("BMC info size %d still over cap %d", sizes.BMCInfo, maxSize*15/100)
	}
	if sizes.BMCServiceable != 3*diskSize {
		t.Errorf("serviceable PELs were pruned: %+v", sizes)
	}
	if len(repository.Prune()) != 0 {
		t.Error("second Prune removed more PELs")
	}
}

func TestPruneEveryCategory(t *testing.T) {
	diskSize := measureDiskSize(t)
	// Caps: 15% is 3 files, 30% is 6 files.
	maxSize := diskSize * 20
	repository := openRepository(t, t.TempDir(), Options{MaxSize: maxSize})

	creators := []struct {
		creator pel.CreatorID
		idBase  uint32
	}{
		{pel.CreatorBMC, 0x50000000},
		{pel.CreatorHostboot, 0x90000000},
	}
	obmcID := uint32(0)
	for _, c := range creators {
		for i := range uint32(4) {
			obmcID++
			mustAdd(t, repository, makePEL(t, pelSpec{
				id: c.idBase + 0x100 + i, obmcID: obmcID, creator: c.creator,
				offset:   time.Duration(obmcID) * time.Second,
				severity: pel.SeverityNonError, flags: pel.ActionHidden,
			}))
		}
		for i := range uint32(7) {
			obmcID++
			mustAdd(t, repository, makePEL(t, pelSpec{
				id: c.idBase + 0x200 + i, obmcID: obmcID, creator: c.creator,
				offset:   time.Duration(obmcID) * time.Second,
				severity: pel.SeverityPredictive, flags: pel.ActionServiceAction | pel.ActionReport,
			}))
		}
	}
	before := repository.Sizes()
	if before.NonBMCInfo != 4*diskSize || before.NonBMCServiceable != 7*diskSize {
		t.Fatalf("non-BMC PELs not counted by category: %+v", before)
	}

	removed := repository.Prune()
	if len(removed) != 4 {
		t.Errorf("removed %d PELs, want one from each category: %v", len(removed), removed)
	}
	informationalCap := maxSize * 15 / 100
	serviceableCap := maxSize * 30 / 100
	sizes := repository.Sizes()
	for _, check := range []struct {
		name string
		size uint64
		cap  uint64
	}{
		{"BMC informational", sizes.BMCInfo, informationalCap},
		{"BMC serviceable", sizes.BMCServiceable, serviceableCap},
		{"non-BMC informational", sizes.NonBMCInfo, informationalCap},
		{"non-BMC serviceable", sizes.NonBMCServiceable, serviceableCap},
	} {
		if check.size > check.cap {
			t.Errorf("%s size %d over cap %d", check.name, check.size, check.cap)
		}
	}
}

func TestPruneByCount(t *testing.T) {
	repository := openRepository(t, t.TempDir(), Options{MaxCount: 10})
	for i := range uint32(12) {
		mustAdd(t, repository, serviceablePEL(t, 0x50000001+i, 1+i, time.Duration(i)*time.Second))
	}
	repository.SetHMCTransState(0x5000000A, pel.TransmissionAcked)
	repository.SetHostTransState(0x50000005, pel.TransmissionSent)

	if !repository.SizeWarning() {
		t.Fatal("SizeWarning = false with 12 of 10 PELs")
	}
	removed := repository.Prune()
	if !slices.Equal(removed, []uint32{10, 5, 1, 2}) {
		t.Errorf("removed = %v, want [10 5 1 2]", removed)
	}
	if repository.Count() != 8 {
		t.Errorf("Count = %d, want 8", repository.Count())
	}
	if repository.SizeWarning() {
		t.Error("SizeWarning still set after prune")
	}
}

func TestSizeWarningBySize(t *testing.T) {
	diskSize := measureDiskSize(t)
	repository := openRepository(t, t.TempDir(), Options{MaxSize: diskSize * 2})
	mustAdd(t, repository, infoPEL(t, 0x50000001, 1, 0))
	if repository.SizeWarning() {
		t.Error("SizeWarning at 50% capacity")
	}
	mustAdd(t, repository, infoPEL(t, 0x50000002, 2, time.Second))
	if !repository.SizeWarning() {
		t.Error("SizeWarning = false at 100% capacity")
	}
}
