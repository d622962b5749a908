// Package adapter defines the downstream boundary for file-received
// notifications.
//
// An adapter publishes each onFileReceived call to an external system
// (webhook, Redis channel) in place of, or alongside, the in-process logic
// layer. Wrapped with NewHandler, an adapter is attached to the bridge like
// any other endpoint.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/types"
)

// EventTypeFileReceived is the event_type of every published payload.
const EventTypeFileReceived = "file_received"

// BaseBackoff is the delay before the first retry; it doubles per attempt.
const BaseBackoff = 500 * time.Millisecond

// FileReceivedEvent is the JSON payload published downstream.
type FileReceivedEvent struct {
	EventType string `json:"event_type"` // always "file_received"
	Version   string `json:"version"`
	Channel   string `json:"channel"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Staged    bool   `json:"staged"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// NewFileReceivedEvent builds the payload for a bridge message.
func NewFileReceivedEvent(msg *types.FileReceived) *FileReceivedEvent {
	return &FileReceivedEvent{
		EventType: EventTypeFileReceived,
		Version:   types.Version,
		Channel:   msg.Channel,
		Method:    msg.Method,
		Path:      msg.Path,
		Staged:    msg.Staged,
		Timestamp: msg.Timestamp,
	}
}

// Adapter publishes file-received events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *FileReceivedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Handler exposes an Adapter as a bridge endpoint.
type Handler struct {
	adapter Adapter
}

// NewHandler wraps a.
func NewHandler(a Adapter) *Handler {
	return &Handler{adapter: a}
}

// HandleFileReceived implements bridge.Handler.
func (h *Handler) HandleFileReceived(ctx context.Context, msg *types.FileReceived) error {
	return h.adapter.Publish(ctx, NewFileReceivedEvent(msg))
}

// Close closes the wrapped adapter.
func (h *Handler) Close() error {
	return h.adapter.Close()
}

var _ bridge.Handler = (*Handler)(nil)

// Retry calls do up to 1+retries times with exponential backoff between
// attempts. permanent reports errors that must not be retried; it may be nil.
func Retry(ctx context.Context, retries int, do func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = do(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return &PermanentError{Err: lastErr}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// PermanentError wraps an error that stopped Retry early.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("non-retriable error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err stopped retrying early.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
