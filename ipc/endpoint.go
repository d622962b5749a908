package ipc

import (
	"context"
	"io"

	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/types"
)

// Endpoint is a bridge handler that forwards notifications to the logic
// layer as method_call frames.
type Endpoint struct {
	enc *FrameEncoder
}

// NewEndpoint creates an endpoint writing frames to w.
func NewEndpoint(w io.Writer) *Endpoint {
	return &Endpoint{enc: NewFrameEncoder(w)}
}

// HandleFileReceived implements bridge.Handler.
func (e *Endpoint) HandleFileReceived(ctx context.Context, msg *types.FileReceived) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.enc.Encode(&MethodCallFrame{
		Type:    FrameTypeMethodCall,
		Channel: msg.Channel,
		Method:  msg.Method,
		Args:    []string{msg.Path},
		Staged:  msg.Staged,
		Ts:      msg.Timestamp,
	})
}

// Verify Endpoint implements bridge.Handler.
var _ bridge.Handler = (*Endpoint)(nil)
