package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/intake/iox"
	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/shell"
)

// shutdownTimeout bounds how long queued notifications may take to drain.
const shutdownTimeout = 10 * time.Second

// ServeCommand returns the serve command.
// It hosts the coordinator behind the shell's stdin/stdout frame stream.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Read intake frames from stdin and deliver files to the configured endpoint",
		Flags:  RuntimeFlags(),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	sessionID := uuid.NewString()
	logger := log.NewLogger(log.Session{ID: sessionID, Channel: cfg.Channel})
	defer iox.DiscardErr(logger.Sync)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	eng, err := buildEngine(ctx, cfg, logger, sessionID, engineOptions{stdout: c.App.Writer})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	eng.logger.Sugar().Infof("serving intake frames on stdin (endpoint %s)", eng.endpoint.name)
	return serve(ctx, eng, c.App.Reader)
}

// serve runs the engine until the frame stream ends or ctx is canceled.
func serve(ctx context.Context, eng *engine, r io.Reader) error {
	eng.reclaim(time.Now())

	runDone := make(chan error, 1)
	go func() { runDone <- eng.coord.Run(ctx) }()

	host := shell.NewHost(eng.coord, eng.endpoint.handler, eng.logger.With("shell"))
	hostDone := make(chan error, 1)
	go func() { hostDone <- host.Serve(ctx, r) }()

	// Host.Serve checks ctx only between frames.
	var serveErr error
	select {
	case serveErr = <-hostDone:
	case <-ctx.Done():
		serveErr = ctx.Err()
		if c, ok := r.(io.Closer); ok {
			iox.DiscardClose(c)
		}
	}

	eng.coord.Close()
	runErr := <-runDone
	eng.shutdown(shutdownTimeout)

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		eng.logger.Error("shell stream failed", map[string]any{"error": serveErr.Error()})
		return cli.Exit(serveErr.Error(), exitUsage)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return cli.Exit(runErr.Error(), exitUsage)
	}
	return nil
}
