package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/intake/bridge"
	"github.com/pithecene-io/intake/cli/config"
	"github.com/pithecene-io/intake/cli/render"
	"github.com/pithecene-io/intake/coordinator"
	"github.com/pithecene-io/intake/intent"
	"github.com/pithecene-io/intake/iox"
	"github.com/pithecene-io/intake/log"
	"github.com/pithecene-io/intake/types"
)

// DeliverCommand returns the deliver command.
// It runs one cold start: launch with a single event, attach, and print the
// notification the logic layer would receive.
func DeliverCommand() *cli.Command {
	flags := append(RuntimeFlags(),
		FormatFlag,
		&cli.StringFlag{
			Name:  "action",
			Usage: "Intake action: view or send",
			Value: string(types.ActionView),
		},
		&cli.StringFlag{
			Name:     "type",
			Usage:    "Declared media type of the payload",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "How long to wait for delivery",
			Value: 30 * time.Second,
		},
	)
	return &cli.Command{
		Name:      "deliver",
		Usage:     "Deliver one file as a cold-start intake event",
		ArgsUsage: "URI [URI...]",
		Flags:     flags,
		Action:    deliverAction,
	}
}

func deliverAction(c *cli.Context) error {
	ev, err := buildEvent(types.Action(c.String("action")), c.String("type"), c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	sessionID := uuid.NewString()
	logger := log.NewLogger(log.Session{ID: sessionID, Channel: cfg.Channel})
	defer iox.DiscardErr(logger.Sync)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait"))
	defer cancel()

	msg, err := deliverOnce(ctx, cfg, logger, sessionID, ev)
	if err != nil {
		return cli.Exit(err.Error(), exitNotDelivered)
	}
	return r.Render(msg)
}

// buildEvent shapes a cold-start event the way the shell would deliver it.
// A single send URI travels as the stream extra; several travel as items.
func buildEvent(action types.Action, mediaType string, uris []string) (*types.IntakeEvent, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("at least one URI is required")
	}

	ev := &types.IntakeEvent{
		Action:    action,
		MediaType: mediaType,
		ColdStart: true,
	}

	switch action {
	case types.ActionView:
		addr := types.ParseAddress(uris[0])
		ev.Data = &addr
	case types.ActionSend:
		if len(uris) == 1 {
			addr := types.ParseAddress(uris[0])
			ev.Stream = &addr
			break
		}
		for _, u := range uris {
			ev.Items = append(ev.Items, types.ParseAddress(u))
		}
	default:
		return nil, fmt.Errorf("invalid action %q (must be view or send)", action)
	}
	return ev, nil
}

// deliverOnce launches with ev and returns the first notification.
func deliverOnce(ctx context.Context, cfg *config.Config, logger *log.Logger, sessionID string, ev *types.IntakeEvent) (*types.FileReceived, error) {
	received := make(chan *types.FileReceived, 1)
	capture := &endpoint{
		name: "deliver",
		handler: bridge.HandlerFunc(func(_ context.Context, msg *types.FileReceived) error {
			select {
			case received <- msg:
			default:
			}
			return nil
		}),
	}

	outcomes := make(chan coordinator.Outcome, 1)
	eng, err := buildEngine(ctx, cfg, logger, sessionID, engineOptions{
		endpoint: capture,
		observer: func(o coordinator.Outcome) { outcomes <- o },
	})
	if err != nil {
		return nil, err
	}
	eng.reclaim(time.Now())

	runDone := make(chan error, 1)
	go func() { runDone <- eng.coord.Run(ctx) }()
	defer func() {
		eng.coord.Close()
		<-runDone
		eng.shutdown(shutdownTimeout)
	}()

	if err := eng.coord.OnLaunch(ev); err != nil {
		return nil, err
	}

	var out coordinator.Outcome
	select {
	case out = <-outcomes:
	case <-ctx.Done():
		return nil, fmt.Errorf("nothing delivered: %w", ctx.Err())
	}

	switch {
	case out.Skip != intent.SkipNone:
		return nil, fmt.Errorf("nothing delivered: %s", out.Skip)
	case out.Err != nil:
		return nil, fmt.Errorf("nothing delivered: %w", out.Err)
	}

	if out.Deferred {
		eng.coord.Attach(capture.handler)
	}

	select {
	case msg := <-received:
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("nothing delivered: %w", ctx.Err())
	}
}
