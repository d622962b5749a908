// Package bridge is the asynchronous channel from native intake handling to
// the application logic layer.
//
// A Bridge holds at most one attached Handler. Notify never blocks on the
// handler and never fails the caller: while nothing is attached the
// notification is refused (Notify returns false) and the caller decides
// whether to keep it for later. The bridge itself does not queue for
// unattached periods.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/types"
)

// Handler receives onFileReceived notifications.
type Handler interface {
	HandleFileReceived(ctx context.Context, msg *types.FileReceived) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *types.FileReceived) error

// HandleFileReceived implements Handler.
func (f HandlerFunc) HandleFileReceived(ctx context.Context, msg *types.FileReceived) error {
	return f(ctx, msg)
}

// State is the bridge attachment lifecycle.
type State int

const (
	// StateUnattached means no handler has ever been attached.
	StateUnattached State = iota
	// StateAttached means a handler is receiving notifications.
	StateAttached
	// StateDetached means the last handler was detached.
	StateDetached
)

// String returns the log label for the state.
func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 30 * time.Second

// Bridge is a single-slot registration for the logic-layer endpoint.
type Bridge struct {
	channel        string
	logger         *log.Logger
	now            func() time.Time
	handlerTimeout time.Duration

	mu    sync.Mutex
	state State
	ep    *endpoint
	// last is the most recently created endpoint, attached or not. The next
	// endpoint starts delivering only after it has drained.
	last *endpoint
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithHandlerTimeout overrides DefaultHandlerTimeout.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

// New creates an unattached bridge for channel.
func New(channel string, logger *log.Logger, opts ...Option) *Bridge {
	if channel == "" {
		channel = types.DefaultChannel
	}
	b := &Bridge{
		channel:        channel,
		logger:         logger,
		now:            time.Now,
		handlerTimeout: DefaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Channel returns the channel name.
func (b *Bridge) Channel() string {
	return b.channel
}

// State returns the current attachment state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Attach binds h as the only endpoint. A previously attached handler is
// detached first; messages already queued for it are still delivered to it,
// and the new endpoint waits for them before its first delivery.
func (b *Bridge) Attach(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ep != nil {
		b.ep.close()
	}
	var after <-chan struct{}
	if b.last != nil {
		after = b.last.done
	}
	b.ep = newEndpoint(h, b.logger, b.handlerTimeout, after)
	b.last = b.ep
	b.state = StateAttached
}

// Detach unbinds the current endpoint. Safe to call when nothing is attached.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ep == nil {
		return
	}
	b.ep.close()
	b.ep = nil
	b.state = StateDetached
}

// Notify sends onFileReceived(path) to the attached handler and returns
// immediately. It returns false when nothing is attached.
func (b *Bridge) Notify(path string, staged bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ep == nil {
		return false
	}
	b.ep.enqueue(&types.FileReceived{
		Channel:   b.channel,
		Method:    types.MethodFileReceived,
		Path:      path,
		Staged:    staged,
		Timestamp: b.now().UTC().Format(time.RFC3339Nano),
	})
	return true
}

// Close detaches the current endpoint and waits until every queued message,
// including those of earlier detached endpoints, has been handed to its
// handler, or ctx is done.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.ep != nil {
		b.ep.close()
		b.ep = nil
		b.state = StateDetached
	}
	last := b.last
	b.mu.Unlock()

	if last == nil {
		return nil
	}
	select {
	case <-last.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
