// Package coordinator wires operating-system intake events to the delivery
// bridge.
//
// Events are handled on a single background worker in arrival order:
// classify, resolve, stage if needed, then notify. A result produced while no
// handler is attached is kept pending and flushed, in order, by the next
// Attach. Failures end at this boundary: they are logged and counted, and
// the logic layer only ever sees complete paths.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/intent"
	"github.com/pithecene-io/intake/iox"
	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/metrics"
	"github.com/pithecene-io/intake/staging"
	"github.com/pithecene-io/intake/types"
)

// ErrClosed is returned when events arrive after Close.
var ErrClosed = errors.New("coordinator closed")

// DefaultQueueSize is the number of events that may wait for the worker.
const DefaultQueueSize = 16

// Stager copies Indirect addresses into scratch storage.
type Stager interface {
	Stage(ctx context.Context, addr types.FileAddress) (*types.StagedFile, error)
}

// Origin tells whether an event came with a launch or a resume.
type Origin int

const (
	// OriginLaunch is an event that started the application (cold start).
	OriginLaunch Origin = iota
	// OriginResume is an event delivered to a running application.
	OriginResume
)

// String returns the log label for the origin.
func (o Origin) String() string {
	if o == OriginLaunch {
		return "launch"
	}
	return "resume"
}

// Outcome describes how one event was handled. Passed to the observer.
type Outcome struct {
	Origin Origin
	Event  *types.IntakeEvent
	// Skip is set when the event was not applicable.
	Skip intent.Skip
	// Path is the delivered (or pending) path; empty on skip or failure.
	Path   string
	Staged bool
	// Delivered is true when the bridge accepted the notification,
	// Deferred when it was kept pending for the next Attach.
	Delivered bool
	Deferred  bool
	// Err is the swallowed failure, if any.
	Err error
}

// Config configures a Coordinator.
type Config struct {
	// Bridge is the delivery bridge (required).
	Bridge *bridge.Bridge
	// Stager copies Indirect addresses (required).
	Stager Stager
	// Logger receives diagnostics (required).
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
	// QueueSize bounds waiting events (default 16).
	QueueSize int
	// VerifyDirect makes Direct addresses fail unless they name a readable
	// regular file.
	VerifyDirect bool
	// Observer, if set, is called on the worker after each event.
	Observer func(Outcome)
}

type job struct {
	origin Origin
	event  *types.IntakeEvent
}

type pendingResult struct {
	path   string
	staged bool
}

// Coordinator owns the bridge lifecycle and the intake worker.
type Coordinator struct {
	bridge       *bridge.Bridge
	stager       Stager
	logger       *log.Logger
	metrics      *metrics.Collector
	verifyDirect bool
	observer     func(Outcome)

	jobs      chan job
	closed    chan struct{}
	closeOnce sync.Once
	// sendMu is held for reading by enqueue and for writing by Run before
	// its final drain, so no job is accepted after that drain.
	sendMu sync.RWMutex

	// mu orders Notify/pending against Attach so no result is lost between
	// an attachment check and a flush.
	mu      sync.Mutex
	pending []pendingResult
}

// New creates a Coordinator. Call Run to start the worker.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Bridge == nil {
		return nil, errors.New("coordinator requires a bridge")
	}
	if cfg.Stager == nil {
		return nil, errors.New("coordinator requires a stager")
	}
	if cfg.Logger == nil {
		return nil, errors.New("coordinator requires a logger")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	return &Coordinator{
		bridge:       cfg.Bridge,
		stager:       cfg.Stager,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		verifyDirect: cfg.VerifyDirect,
		observer:     cfg.Observer,
		jobs:         make(chan job, cfg.QueueSize),
		closed:       make(chan struct{}),
	}, nil
}

// OnLaunch accepts the event the application was launched with.
func (c *Coordinator) OnLaunch(ev *types.IntakeEvent) error {
	return c.enqueue(job{origin: OriginLaunch, event: ev})
}

// OnResume accepts an event delivered while the application is running.
// Redelivered events are processed again; there is no deduplication.
func (c *Coordinator) OnResume(ev *types.IntakeEvent) error {
	return c.enqueue(job{origin: OriginResume, event: ev})
}

func (c *Coordinator) enqueue(j job) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.jobs <- j:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Attach binds h to the bridge and flushes pending results to it in order.
func (c *Coordinator) Attach(h bridge.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bridge.Attach(h)
	c.metrics.IncAttach()

	pending := c.pending
	c.pending = nil
	for _, p := range pending {
		c.bridge.Notify(p.path, p.staged)
		c.metrics.IncNotificationSent()
	}
	if len(pending) > 0 {
		c.metrics.AddPendingFlushed(len(pending))
		c.logger.Info("flushed pending deliveries", map[string]any{"count": len(pending)})
	}
}

// Detach unbinds the current handler. Later results are kept pending.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bridge.Detach()
	c.metrics.IncDetach()
}

// Pending returns the paths waiting for an Attach, oldest first.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.pending))
	for i, p := range c.pending {
		out[i] = p.path
	}
	return out
}

// Close stops accepting events. Run drains what is already queued and returns.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Run processes events until Close is called (after draining the queue) or
// ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-c.jobs:
			c.process(ctx, j)
		case <-c.closed:
			// Blocked senders see closed and return; later ones fail the
			// first check.
			c.sendMu.Lock()
			defer c.sendMu.Unlock()
			for {
				select {
				case j := <-c.jobs:
					c.process(ctx, j)
				default:
					return nil
				}
			}
		}
	}
}

func (c *Coordinator) process(ctx context.Context, j job) {
	out := Outcome{Origin: j.origin, Event: j.event}
	defer func() {
		if c.observer != nil {
			c.observer(out)
		}
	}()

	c.metrics.IncEventReceived(j.origin == OriginLaunch)
	if j.event != nil && j.event.ColdStart != (j.origin == OriginLaunch) {
		c.logger.Warn("cold_start flag disagrees with origin", map[string]any{
			"origin":     j.origin.String(),
			"cold_start": j.event.ColdStart,
		})
	}

	cls := intent.Classify(j.event)
	if !cls.Applicable() {
		out.Skip = cls.Skip
		c.metrics.IncEventIgnored(cls.Skip.String())
		c.logger.Debug("intake event ignored", map[string]any{
			"origin": j.origin.String(),
			"reason": cls.Skip.String(),
		})
		return
	}

	addr := cls.Addresses[0]
	path, err := c.resolve(ctx, addr, &out)
	if err != nil {
		out.Err = err
		c.logger.Warn("intake event dropped", map[string]any{
			"origin":  j.origin.String(),
			"address": addr.Raw,
			"error":   err.Error(),
		})
		return
	}
	out.Path = path

	c.deliver(path, out.Staged, &out)
}

// resolve returns a readable path for addr, staging Indirect addresses.
func (c *Coordinator) resolve(ctx context.Context, addr types.FileAddress, out *Outcome) (string, error) {
	path, needsStaging := staging.Resolve(addr)
	if !needsStaging {
		if c.verifyDirect {
			if err := checkReadable(path); err != nil {
				c.metrics.IncEventIgnored("direct_unreadable")
				return "", err
			}
		}
		c.metrics.IncDirectResolved()
		return path, nil
	}

	staged, err := c.stager.Stage(ctx, addr)
	if err != nil {
		kind := "unknown"
		var stagingErr *staging.StagingError
		if errors.As(err, &stagingErr) {
			kind = stagingErr.Kind.String()
		}
		c.metrics.IncStagingFailure(kind)
		return "", err
	}

	c.metrics.IncStagingSuccess(staged.Size)
	out.Staged = true
	return staged.Path, nil
}

func (c *Coordinator) deliver(path string, staged bool, out *Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bridge.Notify(path, staged) {
		out.Delivered = true
		c.metrics.IncNotificationSent()
		c.logger.Info("file delivered", map[string]any{"path": path, "staged": staged})
		return
	}

	c.pending = append(c.pending, pendingResult{path: path, staged: staged})
	out.Deferred = true
	c.metrics.IncPendingDeferred()
	c.logger.Info("delivery pending until attach", map[string]any{
		"path":    path,
		"pending": len(c.pending),
	})
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("direct address not readable: %w", err)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("direct address not readable: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("direct address %q is not a regular file", path)
	}
	return nil
}
