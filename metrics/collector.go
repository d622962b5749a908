// Package metrics provides per-process intake counters.
//
// The Collector is a leaf package with no internal dependencies. All increment
// methods are nil-receiver safe so callers may run without metrics.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Intake
	EventsReceived    int64            `json:"events_received" yaml:"events_received"`
	EventsColdStart   int64            `json:"events_cold_start" yaml:"events_cold_start"`
	EventsIgnored     int64            `json:"events_ignored" yaml:"events_ignored"`
	IgnoredByReason   map[string]int64 `json:"ignored_by_reason" yaml:"ignored_by_reason"`
	DirectResolved    int64            `json:"direct_resolved" yaml:"direct_resolved"`
	StagingSuccess    int64            `json:"staging_success" yaml:"staging_success"`
	StagingFailure    int64            `json:"staging_failure" yaml:"staging_failure"`
	StagingFailByKind map[string]int64 `json:"staging_failure_by_kind" yaml:"staging_failure_by_kind"`
	BytesStaged       int64            `json:"bytes_staged" yaml:"bytes_staged"`

	// Bridge
	NotificationsSent int64 `json:"notifications_sent" yaml:"notifications_sent"`
	PendingDeferred   int64 `json:"pending_deferred" yaml:"pending_deferred"`
	PendingFlushed    int64 `json:"pending_flushed" yaml:"pending_flushed"`
	Attaches          int64 `json:"attaches" yaml:"attaches"`
	Detaches          int64 `json:"detaches" yaml:"detaches"`

	// Scratch
	ScratchReclaimed int64 `json:"scratch_reclaimed" yaml:"scratch_reclaimed"`

	// Dimensions (informational, set at construction)
	Channel   string `json:"channel" yaml:"channel"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	SessionID string `json:"session_id" yaml:"session_id"`
}

// Collector accumulates counters for one shell process.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	eventsReceived    int64
	eventsColdStart   int64
	eventsIgnored     int64
	ignoredByReason   map[string]int64
	directResolved    int64
	stagingSuccess    int64
	stagingFailure    int64
	stagingFailByKind map[string]int64
	bytesStaged       int64

	notificationsSent int64
	pendingDeferred   int64
	pendingFlushed    int64
	attaches          int64
	detaches          int64

	scratchReclaimed int64

	channel   string
	endpoint  string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(channel, endpoint, sessionID string) *Collector {
	return &Collector{
		ignoredByReason:   make(map[string]int64),
		stagingFailByKind: make(map[string]int64),
		channel:           channel,
		endpoint:          endpoint,
		sessionID:         sessionID,
	}
}

// --- Intake ---

// IncEventReceived records an intake event.
func (c *Collector) IncEventReceived(coldStart bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsReceived++
	if coldStart {
		c.eventsColdStart++
	}
	c.mu.Unlock()
}

// IncEventIgnored records an event that was not for us.
func (c *Collector) IncEventIgnored(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsIgnored++
	c.ignoredByReason[reason]++
	c.mu.Unlock()
}

// IncDirectResolved records a Direct address delivered without copying.
func (c *Collector) IncDirectResolved() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.directResolved++
	c.mu.Unlock()
}

// IncStagingSuccess records a completed staging copy of n bytes.
func (c *Collector) IncStagingSuccess(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagingSuccess++
	c.bytesStaged += n
	c.mu.Unlock()
}

// IncStagingFailure records a failed staging copy.
func (c *Collector) IncStagingFailure(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagingFailure++
	c.stagingFailByKind[kind]++
	c.mu.Unlock()
}

// --- Bridge ---

// IncNotificationSent records a notification accepted by the bridge.
func (c *Collector) IncNotificationSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notificationsSent++
	c.mu.Unlock()
}

// IncPendingDeferred records a result held until attachment.
func (c *Collector) IncPendingDeferred() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pendingDeferred++
	c.mu.Unlock()
}

// AddPendingFlushed records n pending results flushed on attach.
func (c *Collector) AddPendingFlushed(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pendingFlushed += int64(n)
	c.mu.Unlock()
}

// IncAttach records a bridge attachment.
func (c *Collector) IncAttach() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.attaches++
	c.mu.Unlock()
}

// IncDetach records a bridge detachment.
func (c *Collector) IncDetach() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.detaches++
	c.mu.Unlock()
}

// --- Scratch ---

// AddScratchReclaimed records n scratch files removed by reclaim.
func (c *Collector) AddScratchReclaimed(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scratchReclaimed += int64(n)
	c.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all counters.
// Maps are deep-copied so the snapshot is safe to retain.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		EventsReceived:    c.eventsReceived,
		EventsColdStart:   c.eventsColdStart,
		EventsIgnored:     c.eventsIgnored,
		IgnoredByReason:   copyMap(c.ignoredByReason),
		DirectResolved:    c.directResolved,
		StagingSuccess:    c.stagingSuccess,
		StagingFailure:    c.stagingFailure,
		StagingFailByKind: copyMap(c.stagingFailByKind),
		BytesStaged:       c.bytesStaged,
		NotificationsSent: c.notificationsSent,
		PendingDeferred:   c.pendingDeferred,
		PendingFlushed:    c.pendingFlushed,
		Attaches:          c.attaches,
		Detaches:          c.detaches,
		ScratchReclaimed:  c.scratchReclaimed,
		Channel:           c.channel,
		Endpoint:          c.endpoint,
		SessionID:         c.sessionID,
	}
}

func copyMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
