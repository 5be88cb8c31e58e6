// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pel/lib/archive"
	"github.com/bureau-foundation/pel/lib/cli"
	"github.com/bureau-foundation/pel/lib/codec"
	"github.com/bureau-foundation/pel/lib/control"
	"github.com/bureau-foundation/pel/lib/pel"
	"github.com/bureau-foundation/pel/lib/repository"
	"github.com/bureau-foundation/pel/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPEL(t *testing.T) *pel.PEL {
	t.Helper()
	commit := pel.BCDTimeFromTime(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	privateHeader := pel.NewPrivateHeader(pel.CreatorBMC, 0x50000001, 7, commit, [8]byte{'t', 'e', 's', 't'})
	userHeader := pel.NewUserHeader(0x28, 0x03, pel.SeverityPredictive, 0x00,
		pel.ActionServiceAction|pel.ActionReport)
	src := pel.NewSRC(pel.SRCOptions{Type: 0xBD, ReasonCode: 0x8D10}, discardLogger())
	cborData, err := codec.Marshal(map[string]int{"retries": 3})
	if err != nil {
		t.Fatal(err)
	}
	return pel.New(privateHeader, userHeader, src,
		pel.NewUserData(pel.UserDataJSON, 0x2000, []byte(`{"SENSOR_VALUE":"0x5A"}`)),
		pel.NewUserData(pel.UserDataCBOR, 0x2000, cborData),
	)
}

func newTestApp() (*app, *bytes.Buffer) {
	var buffer bytes.Buffer
	return &app{stdout: &buffer}, &buffer
}

func TestDecodeText(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "pel", testPEL(t).Flatten())
	a, out := newTestApp()
	if err := a.rootCommand().Execute([]string{"decode", path}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, want := range []string{"0x50000001", "BD8D10", "predictive (serviceable)", "SENSOR_VALUE", "retries", "User Data (cbor"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "pel", testPEL(t).Flatten())
	a, out := newTestApp()
	if err := a.rootCommand().Execute([]string{"decode", "--json", path}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var decoded struct {
		ID            string `json:"pel_id"`
		Severity      string `json:"severity"`
		ReferenceCode string `json:"reference_code"`
		UserData      []struct {
			Format string `json:"format"`
		} `json:"user_data"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if decoded.ID != "0x50000001" || decoded.Severity != "predictive" || decoded.ReferenceCode != "BD8D10" {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.UserData) != 2 || decoded.UserData[0].Format != "json" || decoded.UserData[1].Format != "cbor" {
		t.Errorf("user data = %+v", decoded.UserData)
	}
}

func TestDecodeInvalidExitsTwo(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "junk", []byte("definitely not a PEL"))
	a, out := newTestApp()
	err := a.rootCommand().Execute([]string{"decode", path})
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("err = %v, want exit code 2", err)
	}
	if !strings.Contains(out.String(), "false") {
		t.Errorf("invalid PEL not reported:\n%s", out.String())
	}
}

func TestRenderUserData(t *testing.T) {
	cborData, err := codec.Marshal([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name       string
		subtype    uint8
		data       []byte
		wantFormat string
		wantText   string
	}{
		{"json", pel.UserDataJSON, []byte("{\"a\":1}\x00\x00"), "json", `"a": 1`},
		{"cbor", pel.UserDataCBOR, cborData, "cbor", `["a"]`},
		{"text", pel.UserDataText, []byte("fan stalled\x00"), "text", "fan stalled"},
		{"bad json", pel.UserDataJSON, []byte("{"), "hex", "7B"},
		{"unknown subtype", 0x42, []byte{0xDE, 0xAD}, "hex", "00000000  DE AD"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			format, content := renderUserData(test.subtype, test.data)
			if format != test.wantFormat || !strings.Contains(content, test.wantText) {
				t.Errorf("renderUserData = %q, %q; want %q containing %q", format, content, test.wantFormat, test.wantText)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		text    string
		want    uint32
		wantErr bool
	}{
		{"0x50000001", 0x50000001, false},
		{"42", 42, false},
		{"0X1f", 0x1F, false},
		{"0x100000000", 0, true},
		{"fan", 0, true},
	}
	for _, test := range tests {
		got, err := parseID(test.text)
		if (err != nil) != test.wantErr || got != test.want {
			t.Errorf("parseID(%q) = 0x%X, %v", test.text, got, err)
		}
	}
}

// fakePeld serves canned responses and records create requests.
type fakePeld struct {
	socket  string
	creates chan control.CreateRequest
}

func startFakePeld(t *testing.T) *fakePeld {
	t.Helper()
	f := &fakePeld{
		socket:  filepath.Join(testutil.SocketDir(t), "peld.sock"),
		creates: make(chan control.CreateRequest, 1),
	}
	server := control.NewServer(f.socket, discardLogger())
	server.Handle(control.ActionList, func(context.Context, []byte) (any, error) {
		return control.ListResponse{PELs: []repository.Attributes{
			{PELID: 0x50000001, OBMCID: 1, Creator: pel.CreatorBMC, Severity: pel.SeverityPredictive,
				ActionFlags: pel.ActionServiceAction, Size: 412},
			{PELID: 0x50000002, OBMCID: 2, Creator: pel.CreatorBMC, Severity: pel.SeverityNonError,
				ActionFlags: pel.ActionHidden, Size: 300},
			{PELID: 0x90000003, OBMCID: 3, Creator: pel.CreatorHostboot, Severity: pel.SeverityNonError, Size: 1024},
		}}, nil
	})
	server.Handle(control.ActionCreate, func(_ context.Context, raw []byte) (any, error) {
		var request control.CreateRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		f.creates <- request
		return control.CreateResponse{PELID: 0x50000004, OBMCID: 4}, nil
	})
	server.Handle(control.ActionErase, func(context.Context, []byte) (any, error) {
		return control.EraseResponse{Removed: false}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	testutil.WaitForFile(t, f.socket, 5*time.Second)
	return f
}

func TestListFiltersHidden(t *testing.T) {
	peld := startFakePeld(t)

	a, out := newTestApp()
	if err := a.rootCommand().Execute([]string{"list", "--socket", peld.socket}); err != nil {
		t.Fatalf("list: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "0x50000001") || !strings.Contains(text, "0x90000003") {
		t.Errorf("list missing PELs:\n%s", text)
	}
	if strings.Contains(text, "0x50000002") {
		t.Errorf("hidden PEL listed:\n%s", text)
	}

	a, out = newTestApp()
	if err := a.rootCommand().Execute([]string{"list", "--socket", peld.socket, "--serviceable", "--json"}); err != nil {
		t.Fatalf("list --serviceable: %v", err)
	}
	var pels []struct {
		PELID uint32 `json:"pel_id"`
	}
	if err := json.Unmarshal(out.Bytes(), &pels); err != nil {
		t.Fatalf("list --json output: %v\n%s", err, out.String())
	}
	if len(pels) != 1 || pels[0].PELID != 0x50000001 {
		t.Errorf("serviceable PELs = %+v", pels)
	}
}

func TestCreateSendsAdditionalData(t *testing.T) {
	peld := startFakePeld(t)

	a, out := newTestApp()
	args := []string{"create", "--socket", peld.socket, "--level", "warning",
		"--data", "SENSOR_VALUE=0x5A", "--data", "CALLOUT_INVENTORY_PATH=/system/chassis/fan0",
		"xyz.openbmc_project.Fan.Error.Fault"}
	if err := a.rootCommand().Execute(args); err != nil {
		t.Fatalf("create: %v", err)
	}
	request := testutil.RequireReceive(t, peld.creates, 5*time.Second, "waiting for create request")
	if request.Message != "xyz.openbmc_project.Fan.Error.Fault" || request.Level != "warning" {
		t.Errorf("request = %+v", request)
	}
	if request.AdditionalData["SENSOR_VALUE"] != "0x5A" || request.AdditionalData["CALLOUT_INVENTORY_PATH"] != "/system/chassis/fan0" {
		t.Errorf("additional data = %v", request.AdditionalData)
	}
	if !strings.Contains(out.String(), "0x50000004") {
		t.Errorf("output = %q", out.String())
	}

	a, _ = newTestApp()
	err := a.rootCommand().Execute([]string{"create", "--socket", peld.socket, "--data", "novalue", "x"})
	if err == nil || !strings.Contains(err.Error(), "KEY=VALUE") {
		t.Errorf("malformed --data err = %v", err)
	}
}

func TestEraseMissingExitsOne(t *testing.T) {
	peld := startFakePeld(t)
	a, _ := newTestApp()
	err := a.rootCommand().Execute([]string{"erase", "--socket", peld.socket, "--obmc", "99"})
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("err = %v, want exit code 1", err)
	}
}

func TestArchiveListAndExtract(t *testing.T) {
	directory := t.TempDir()
	pelArchive, err := archive.New(directory, archive.CompressionZstd, 0, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	p := testPEL(t)
	if err := pelArchive.Store(p.FileName(), p.Flatten()); err != nil {
		t.Fatalf("Store: %v", err)
	}

	a, out := newTestApp()
	if err := a.rootCommand().Execute([]string{"archive", "list", "--dir", directory}); err != nil {
		t.Fatalf("archive list: %v", err)
	}
	if strings.TrimSpace(out.String()) != p.FileName() {
		t.Errorf("archive list = %q, want %q", out.String(), p.FileName())
	}

	extracted := filepath.Join(t.TempDir(), "extracted")
	a, _ = newTestApp()
	if err := a.rootCommand().Execute([]string{"archive", "extract", "--dir", directory, "-o", extracted, p.FileName()}); err != nil {
		t.Fatalf("archive extract: %v", err)
	}
	data, err := os.ReadFile(extracted)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, p.Flatten()) {
		t.Error("extracted PEL differs from the archived one")
	}

	a, out = newTestApp()
	if err := a.rootCommand().Execute([]string{"archive", "extract", "--dir", directory, p.FileName()}); err != nil {
		t.Fatalf("archive extract (decode): %v", err)
	}
	if !strings.Contains(out.String(), "BD8D10") {
		t.Errorf("decoded archive output:\n%s", out.String())
	}
}
