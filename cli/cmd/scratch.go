package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/intake/cli/render"
	"github.com/pithecene-io/intake/cli/tui"
	"github.com/pithecene-io/intake/staging"
)

// ScratchCommand returns the scratch command group.
func ScratchCommand() *cli.Command {
	return &cli.Command{
		Name:  "scratch",
		Usage: "Inspect and reclaim staged copies",
		Subcommands: []*cli.Command{
			scratchListCommand(),
			scratchStatsCommand(),
			scratchReclaimCommand(),
		},
	}
}

func scratchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to intake.yaml",
			EnvVars: []string{"INTAKE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "scratch-dir",
			Usage: "Scratch directory (default: $TMPDIR/" + defaultScratchDirName + ")",
		},
		&cli.DurationFlag{
			Name:  "max-age",
			Usage: "Files older than this are stale (default: reclaim_max_age or 24h)",
		},
	}
}

func scratchListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List staged files, oldest first",
		Flags:  append(ReadOnlyFlags(), scratchFlags()...),
		Action: scratchListAction,
	}
}

func scratchStatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Summarize scratch usage",
		Flags:  append(ReadOnlyFlags(), scratchFlags()...),
		Action: scratchStatsAction,
	}
}

func scratchReclaimCommand() *cli.Command {
	return &cli.Command{
		Name:   "reclaim",
		Usage:  "Remove staged files older than --max-age and abandoned partial writes",
		Flags:  append(ReadOnlyFlags(), scratchFlags()...),
		Action: scratchReclaimAction,
	}
}

// scratchSettings resolves the scratch directory and stale age for the
// scratch subcommands.
func scratchSettings(c *cli.Context) (string, time.Duration, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return "", 0, err
	}
	maxAge := cfg.ReclaimMaxAge.Duration
	if c.IsSet("max-age") {
		maxAge = c.Duration("max-age")
	}
	if maxAge <= 0 {
		return "", 0, fmt.Errorf("--max-age must be positive")
	}
	return cfg.ScratchDir, maxAge, nil
}

func scratchListAction(c *cli.Context) error {
	dir, maxAge, err := scratchSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	files, err := staging.ListScratch(dir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("list scratch: %v", err), exitUsage)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewScratchList, &tui.ScratchView{
			Dir:    dir,
			MaxAge: maxAge,
			Now:    time.Now(),
			Files:  files,
		})
	}
	if files == nil {
		files = []staging.ScratchFile{}
	}
	return r.Render(files)
}

func scratchStatsAction(c *cli.Context) error {
	dir, maxAge, err := scratchSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	files, err := staging.ListScratch(dir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("list scratch: %v", err), exitUsage)
	}

	summary := staging.Summarize(dir, files, maxAge, time.Now())
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewScratchStats, &summary)
	}
	return r.Render(summary)
}

func scratchReclaimAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for scratch reclaim", exitUsage)
	}

	dir, maxAge, err := scratchSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	res, err := staging.Reclaim(dir, maxAge, time.Now())
	if renderErr := r.Render(res); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("reclaim incomplete: %v", err), exitUsage)
	}
	return nil
}
