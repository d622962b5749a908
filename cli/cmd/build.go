package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/intake/adapter"
	"github.com/pithecene-io/intake/adapter/redis"
	"github.com/pithecene-io/intake/adapter/webhook"
	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/cli/config"
	"github.com/pithecene-io/intake/coordinator"
	"github.com/pithecene-io/intake/ipc"
	intakelode "github.com/pithecene-io/intake/lode"
	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/metrics"
	"github.com/pithecene-io/intake/staging"
)

const (
	defaultScratchDirName = "intake-scratch"
	defaultReclaimMaxAge  = 24 * time.Hour
)

// loadConfig reads --config (if given), applies flag overrides and defaults,
// and validates the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), defaultScratchDirName)
	}
	if cfg.ReclaimMaxAge.Duration <= 0 {
		cfg.ReclaimMaxAge.Duration = defaultReclaimMaxAge
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("scratch-dir") {
		cfg.ScratchDir = c.String("scratch-dir")
	}
	if c.IsSet("channel") {
		cfg.Channel = c.String("channel")
	}
	if c.IsSet("endpoint") {
		cfg.Endpoint.Type = c.String("endpoint")
	}
	if c.IsSet("endpoint-url") {
		cfg.Endpoint.URL = c.String("endpoint-url")
	}
	if c.IsSet("content-root") {
		cfg.Providers.Content.Root = c.String("content-root")
	}
	if c.IsSet("verify-direct") {
		cfg.VerifyDirect = c.Bool("verify-direct")
	}
	if c.IsSet("reclaim-max-age") {
		cfg.ReclaimMaxAge.Duration = c.Duration("reclaim-max-age")
	}
	if c.IsSet("handler-timeout") {
		cfg.HandlerTimeout.Duration = c.Duration("handler-timeout")
	}
}

// buildProviders registers a provider per enabled Indirect scheme.
func buildProviders(ctx context.Context, p config.ProvidersConfig) (*staging.Registry, error) {
	reg := staging.NewRegistry()

	if p.Content.Root != "" {
		reg.Register("content", intakelode.NewStoreProvider(intakelode.NewFSStoreFactory(p.Content.Root)))
	}

	if p.S3.Enabled {
		factory, err := intakelode.NewS3StoreFactory(ctx, intakelode.S3Config{
			Prefix:       p.S3.Prefix,
			Region:       p.S3.Region,
			Endpoint:     p.S3.Endpoint,
			UsePathStyle: p.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 provider: %w", err)
		}
		reg.Register("s3", intakelode.NewStoreProvider(factory))
	}

	if p.HTTP.Enabled {
		hp := staging.NewHTTPProvider(p.HTTP.Timeout.Duration, p.HTTP.Headers)
		reg.Register("http", hp)
		reg.Register("https", hp)
	}

	return reg, nil
}

// endpoint is the bridge handler bound on attach, plus its cleanup.
type endpoint struct {
	name    string
	handler bridge.Handler
	closer  io.Closer
}

func (e *endpoint) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// buildEndpoint creates the configured endpoint. The stdout endpoint writes
// method_call frames to w.
func buildEndpoint(ep config.EndpointConfig, w io.Writer) (*endpoint, error) {
	retries := func(def int) int {
		if ep.Retries != nil {
			return *ep.Retries
		}
		return def
	}

	switch ep.Type {
	case "", config.EndpointStdout:
		return &endpoint{name: config.EndpointStdout, handler: ipc.NewEndpoint(w)}, nil

	case config.EndpointWebhook:
		a, err := webhook.New(webhook.Config{
			URL:     ep.URL,
			Headers: ep.Headers,
			Timeout: ep.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		h := adapter.NewHandler(a)
		return &endpoint{name: ep.Type, handler: h, closer: h}, nil

	case config.EndpointRedis:
		a, err := redis.New(redis.Config{
			URL:     ep.URL,
			Channel: ep.Channel,
			Timeout: ep.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		h := adapter.NewHandler(a)
		return &endpoint{name: ep.Type, handler: h, closer: h}, nil

	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownEndpoint, ep.Type)
	}
}

// engine is an assembled coordinator with its collaborators.
type engine struct {
	cfg      *config.Config
	bridge   *bridge.Bridge
	coord    *coordinator.Coordinator
	stager   *staging.Stager
	metrics  *metrics.Collector
	logger   *log.Logger
	endpoint *endpoint
}

type engineOptions struct {
	// endpoint overrides the configured endpoint (deliver).
	endpoint *endpoint
	// stdout receives stdout endpoint frames.
	stdout   io.Writer
	observer func(coordinator.Outcome)
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *log.Logger, sessionID string, opts engineOptions) (*engine, error) {
	registry, err := buildProviders(ctx, cfg.Providers)
	if err != nil {
		return nil, err
	}

	stager, err := staging.NewStager(cfg.ScratchDir, registry)
	if err != nil {
		return nil, err
	}

	ep := opts.endpoint
	if ep == nil {
		ep, err = buildEndpoint(cfg.Endpoint, opts.stdout)
		if err != nil {
			return nil, err
		}
	}

	var bridgeOpts []bridge.Option
	if cfg.HandlerTimeout.Duration > 0 {
		bridgeOpts = append(bridgeOpts, bridge.WithHandlerTimeout(cfg.HandlerTimeout.Duration))
	}
	b := bridge.New(cfg.Channel, logger.With("bridge"), bridgeOpts...)

	collector := metrics.NewCollector(b.Channel(), ep.name, sessionID)

	coord, err := coordinator.New(coordinator.Config{
		Bridge:       b,
		Stager:       stager,
		Logger:       logger.With("coordinator"),
		Metrics:      collector,
		VerifyDirect: cfg.VerifyDirect,
		Observer:     opts.observer,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("intake runtime ready", map[string]any{
		"scratch_dir": stager.Dir(),
		"schemes":     registry.Schemes(),
		"endpoint":    ep.name,
	})

	return &engine{
		cfg:      cfg,
		bridge:   b,
		coord:    coord,
		stager:   stager,
		metrics:  collector,
		logger:   logger,
		endpoint: ep,
	}, nil
}

// reclaim removes stale scratch files left by earlier sessions.
func (rt *engine) reclaim(now time.Time) {
	res, err := staging.Reclaim(rt.stager.Dir(), rt.cfg.ReclaimMaxAge.Duration, now)
	if err != nil {
		rt.logger.Warn("scratch reclaim incomplete", map[string]any{"error": err.Error()})
	}
	rt.metrics.AddScratchReclaimed(res.Removed + res.RemovedParts)
	if res.Removed+res.RemovedParts > 0 {
		rt.logger.Info("scratch reclaimed", map[string]any{
			"removed":     res.Removed,
			"parts":       res.RemovedParts,
			"freed_bytes": res.FreedBytes,
		})
	}
}

// shutdown drains the bridge, releases the endpoint and logs final counters.
func (rt *engine) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rt.bridge.Close(ctx); err != nil {
		rt.logger.Warn("bridge did not drain", map[string]any{"error": err.Error()})
	}
	if err := rt.endpoint.Close(); err != nil {
		rt.logger.Warn("endpoint close failed", map[string]any{"error": err.Error()})
	}

	snap := rt.metrics.Snapshot()
	rt.logger.Info("intake session complete", map[string]any{
		"events_received":    snap.EventsReceived,
		"events_ignored":     snap.EventsIgnored,
		"staging_success":    snap.StagingSuccess,
		"staging_failure":    snap.StagingFailure,
		"notifications_sent": snap.NotificationsSent,
		"pending":            len(rt.coord.Pending()),
		"scratch_reclaimed":  snap.ScratchReclaimed,
	})
}
