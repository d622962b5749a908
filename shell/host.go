// Package shell hosts the coordinator behind the native shell's frame stream.
//
// The shell writes launch/resume/attach/detach frames; the host turns them
// into coordinator calls. Attach binds the host's configured endpoint.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/coordinator"
	"github.com/pithecene-io/intake/ipc"
	"github.com/pithecene-io/intake/log"
)

// Host reads shell frames and drives a Coordinator.
type Host struct {
	coord    *coordinator.Coordinator
	endpoint bridge.Handler
	logger   *log.Logger

	decodeErrors int
}

// NewHost creates a host. endpoint is attached on every attach frame.
func NewHost(coord *coordinator.Coordinator, endpoint bridge.Handler, logger *log.Logger) *Host {
	return &Host{
		coord:    coord,
		endpoint: endpoint,
		logger:   logger,
	}
}

// DecodeErrors returns the number of frames skipped as undecodable.
func (h *Host) DecodeErrors() int {
	return h.decodeErrors
}

// Serve reads frames from r until EOF, a fatal frame error, or ctx is done.
// A clean EOF returns nil. Undecodable frames are logged and skipped.
func (h *Host) Serve(ctx context.Context, r io.Reader) error {
	dec := ipc.NewFrameDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := dec.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("shell stream: %w", err)
		}

		frame, err := ipc.DecodeShellFrame(payload)
		if err != nil {
			h.decodeErrors++
			h.logger.Warn("skipping shell frame", map[string]any{"error": err.Error()})
			continue
		}

		if err := h.dispatch(frame); err != nil {
			return err
		}
	}
}

func (h *Host) dispatch(frame *ipc.ShellFrame) error {
	switch frame.Type {
	case ipc.FrameTypeLaunch:
		return h.coord.OnLaunch(frame.Event)
	case ipc.FrameTypeResume:
		return h.coord.OnResume(frame.Event)
	case ipc.FrameTypeAttach:
		h.coord.Attach(h.endpoint)
	case ipc.FrameTypeDetach:
		h.coord.Detach()
	}
	return nil
}
