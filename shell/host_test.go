package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/coordinator"
	"github.com/pithecene-io/intake/ipc"
	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/staging"
	"github.com/pithecene-io/intake/types"
)

type recorder struct {
	msgs chan *types.FileReceived
}

func (r *recorder) HandleFileReceived(_ context.Context, msg *types.FileReceived) error {
	r.msgs <- msg
	return nil
}

func newCoordinator(t *testing.T, provider staging.Provider, outcomes chan<- coordinator.Outcome) *coordinator.Coordinator {
	t.Helper()
	stager, err := staging.NewStager(filepath.Join(t.TempDir(), "scratch"), provider)
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}
	coord, err := coordinator.New(coordinator.Config{
		Bridge:   bridge.New("", log.NewNop()),
		Stager:   stager,
		Logger:   log.NewNop(),
		Observer: func(o coordinator.Outcome) { outcomes <- o },
	})
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = coord.Run(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		coord.Close()
		<-done
	})
	return coord
}

func frames(t *testing.T, fs ...*ipc.ShellFrame) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := ipc.NewFrameEncoder(&buf)
	for _, f := range fs {
		if err := enc.Encode(f); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return &buf
}

func waitOutcome(t *testing.T, ch <-chan coordinator.Outcome) coordinator.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return coordinator.Outcome{}
	}
}

func TestServe_ColdStartThenAttach(t *testing.T) {
	provider := staging.ProviderFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("0123456789"))), nil
	})
	outcomes := make(chan coordinator.Outcome, 8)
	coord := newCoordinator(t, provider, outcomes)
	rec := &recorder{msgs: make(chan *types.FileReceived, 8)}
	host := NewHost(coord, rec, log.NewNop())

	stream := types.Indirect("content://com.example/sheet")
	launch := frames(t, &ipc.ShellFrame{
		Type: ipc.FrameTypeLaunch,
		Event: &types.IntakeEvent{
			Action:    types.ActionSend,
			MediaType: types.MediaTypeLegacySpreadsheet,
			Stream:    &stream,
			ColdStart: true,
		},
	})
	if err := host.Serve(t.Context(), launch); err != nil {
		t.Fatalf("Serve launch: %v", err)
	}
	out := waitOutcome(t, outcomes)
	if !out.Deferred {
		t.Fatalf("expected deferred cold start, got %+v", out)
	}

	if err := host.Serve(t.Context(), frames(t, &ipc.ShellFrame{Type: ipc.FrameTypeAttach})); err != nil {
		t.Fatalf("Serve attach: %v", err)
	}

	select {
	case msg := <-rec.msgs:
		if msg.Path != out.Path {
			t.Errorf("Path = %q, want %q", msg.Path, out.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after attach")
	}
}

func TestServe_SkipsUndecodableFrames(t *testing.T) {
	outcomes := make(chan coordinator.Outcome, 8)
	coord := newCoordinator(t, staging.NewRegistry(), outcomes)
	host := NewHost(coord, &recorder{msgs: make(chan *types.FileReceived, 1)}, log.NewNop())

	var buf bytes.Buffer
	enc := ipc.NewFrameEncoder(&buf)
	if err := enc.WriteFrame([]byte{0xc1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Encode(&ipc.ShellFrame{Type: "bogus"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Encode(&ipc.ShellFrame{Type: ipc.FrameTypeDetach}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := host.Serve(t.Context(), &buf); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if host.DecodeErrors() != 2 {
		t.Errorf("DecodeErrors = %d, want 2", host.DecodeErrors())
	}
}

func TestServe_FatalFrameError(t *testing.T) {
	outcomes := make(chan coordinator.Outcome, 1)
	coord := newCoordinator(t, staging.NewRegistry(), outcomes)
	host := NewHost(coord, &recorder{msgs: make(chan *types.FileReceived, 1)}, log.NewNop())

	err := host.Serve(t.Context(), bytes.NewReader([]byte{0x00, 0x00}))
	if !ipc.IsFatalFrameError(err) {
		t.Fatalf("expected fatal frame error, got %v", err)
	}
}

func TestServe_ClosedCoordinator(t *testing.T) {
	outcomes := make(chan coordinator.Outcome, 1)
	coord := newCoordinator(t, staging.NewRegistry(), outcomes)
	coord.Close()
	host := NewHost(coord, &recorder{msgs: make(chan *types.FileReceived, 1)}, log.NewNop())

	err := host.Serve(t.Context(), frames(t, &ipc.ShellFrame{
		Type:  ipc.FrameTypeResume,
		Event: &types.IntakeEvent{Action: types.ActionView},
	}))
	if !errors.Is(err, coordinator.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
