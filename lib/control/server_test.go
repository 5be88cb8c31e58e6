// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pel/lib/codec"
	"github.com/bureau-foundation/pel/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startServer runs server until the test ends and returns its socket
// path once it is listening.
func startServer(t *testing.T, register func(*Server)) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := NewServer(socketPath, testLogger())
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	testutil.WaitForFile(t, socketPath, 5*time.Second)
	return socketPath
}

// sendRaw writes raw bytes and decodes the response envelope.
func sendRaw(t *testing.T, socketPath string, request []byte) Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()
	conn.Write(request)
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}
	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func TestCallDecodesResult(t *testing.T) {
	socketPath := startServer(t, func(server *Server) {
		server.Handle(ActionErase, func(ctx context.Context, raw []byte) (any, error) {
			var request LogIDRequest
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return EraseResponse{Removed: request.OBMCID == 7}, nil
		})
	})

	client := NewClient(socketPath)
	var response EraseResponse
	if err := client.Call(context.Background(), ActionErase, map[string]any{"obmc_id": 7}, &response); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !response.Removed {
		t.Error("handler did not see obmc_id 7")
	}
}

func TestCallNilResult(t *testing.T) {
	socketPath := startServer(t, func(server *Server) {
		server.Handle(ActionHostState, func(context.Context, []byte) (any, error) { return nil, nil })
	})

	response := sendRaw(t, socketPath, mustMarshal(t, map[string]any{"action": ActionHostState, "up": true}))
	if !response.OK || len(response.Data) != 0 {
		t.Errorf("response = %+v, want ok with no data", response)
	}
	if err := NewClient(socketPath).Call(context.Background(), ActionHostState, nil, nil); err != nil {
		t.Errorf("Call: %v", err)
	}
}

func TestHandlerErrorIsServiceError(t *testing.T) {
	socketPath := startServer(t, func(server *Server) {
		server.Handle(ActionHostAck, func(context.Context, []byte) (any, error) {
			return nil, errors.New("PEL not found")
		})
	})

	err := NewClient(socketPath).Call(context.Background(), ActionHostAck, map[string]any{"pel_id": 1}, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if serviceErr.Action != ActionHostAck || serviceErr.Message != "PEL not found" {
		t.Errorf("ServiceError = %+v", serviceErr)
	}
}

func TestMalformedRequests(t *testing.T) {
	socketPath := startServer(t, func(server *Server) {
		server.Handle(ActionStatus, func(context.Context, []byte) (any, error) { return nil, nil })
	})

	tests := []struct {
		name    string
		request []byte
	}{
		{"invalid CBOR", []byte{0xff, 0xfe, 0xfd, 0xfc}},
		{"missing action", mustMarshal(t, map[string]string{"foo": "bar"})},
		{"unknown action", mustMarshal(t, map[string]string{"action": "nonexistent"})},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := sendRaw(t, socketPath, test.request)
			if response.OK || response.Error == "" {
				t.Errorf("response = %+v, want an error", response)
			}
		})
	}
}

func TestConnectionFailureIsNotServiceError(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	err := client.Call(context.Background(), ActionStatus, nil, nil)
	if err == nil {
		t.Fatal("Call to a missing socket succeeded")
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		t.Error("connection failure reported as ServiceError")
	}
}

func TestCallHonoursContext(t *testing.T) {
	release := make(chan struct{})
	socketPath := startServer(t, func(server *Server) {
		server.Handle(ActionPrune, func(ctx context.Context, raw []byte) (any, error) {
			<-release
			return nil, nil
		})
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- NewClient(socketPath).Call(ctx, ActionPrune, nil, nil)
	}()
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for cancelled Call")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDuplicateHandlerPanics(t *testing.T) {
	server := NewServer("/unused", testLogger())
	server.Handle(ActionList, func(context.Context, []byte) (any, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("duplicate Handle did not panic")
		}
	}()
	server.Handle(ActionList, func(context.Context, []byte) (any, error) { return nil, nil })
}

func TestSocketMode(t *testing.T) {
	socketPath := startServer(t, func(*Server) {})
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o660 {
		t.Errorf("socket mode = %o, want 660", mode)
	}
}

func mustMarshal(t *testing.T, value any) []byte {
	t.Helper()
	data, err := codec.Marshal(value)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
