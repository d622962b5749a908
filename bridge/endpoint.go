package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/types"
)

// endpoint delivers messages to one handler, in order, on its own goroutine.
type endpoint struct {
	handler Handler
	logger  *log.Logger
	timeout time.Duration
	// after, if set, is closed when the previous endpoint has drained.
	after <-chan struct{}

	mu     sync.Mutex
	queue  []*types.FileReceived
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newEndpoint(h Handler, logger *log.Logger, timeout time.Duration, after <-chan struct{}) *endpoint {
	ep := &endpoint{
		handler: h,
		logger:  logger,
		timeout: timeout,
		after:   after,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go ep.loop()
	return ep
}

func (ep *endpoint) enqueue(msg *types.FileReceived) {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return
	}
	ep.queue = append(ep.queue, msg)
	ep.mu.Unlock()
	ep.signal()
}

// close stops accepting messages. Queued messages are still delivered.
func (ep *endpoint) close() {
	ep.mu.Lock()
	ep.closed = true
	ep.mu.Unlock()
	ep.signal()
}

func (ep *endpoint) signal() {
	select {
	case ep.wake <- struct{}{}:
	default:
	}
}

func (ep *endpoint) loop() {
	defer close(ep.done)
	if ep.after != nil {
		<-ep.after
	}
	for range ep.wake {
		ep.mu.Lock()
		batch := ep.queue
		ep.queue = nil
		closed := ep.closed
		ep.mu.Unlock()

		for _, msg := range batch {
			ep.deliver(msg)
		}
		if closed {
			// enqueue refuses once closed, so the queue stays empty.
			return
		}
	}
}

func (ep *endpoint) deliver(msg *types.FileReceived) {
	ctx, cancel := context.WithTimeout(context.Background(), ep.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			ep.logger.Error("bridge handler panicked", map[string]any{
				"path":  msg.Path,
				"panic": r,
			})
		}
	}()

	if err := ep.handler.HandleFileReceived(ctx, msg); err != nil {
		ep.logger.Warn("bridge handler failed", map[string]any{
			"path":  msg.Path,
			"error": err.Error(),
		})
	}
}
