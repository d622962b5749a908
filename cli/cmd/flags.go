// Package cmd provides CLI commands for the intake binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitUsage        = 1
	exitNotDelivered = 2
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for scratch list and scratch stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (scratch list, scratch stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// RuntimeFlags returns the flags that build a coordinator (serve, deliver).
// Every flag overrides the matching intake.yaml value when set.
func RuntimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to intake.yaml",
			EnvVars: []string{"INTAKE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "scratch-dir",
			Usage: "Directory for staged copies (default: $TMPDIR/" + defaultScratchDirName + ")",
		},
		&cli.StringFlag{
			Name:  "channel",
			Usage: "Bridge channel name",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Notification endpoint: stdout, webhook, redis",
		},
		&cli.StringFlag{
			Name:  "endpoint-url",
			Usage: "Webhook URL or Redis URL for the endpoint",
		},
		&cli.StringFlag{
			Name:  "content-root",
			Usage: "Serve content:// addresses from this directory (one subdirectory per authority)",
		},
		&cli.BoolFlag{
			Name:  "verify-direct",
			Usage: "Drop direct paths that are not readable regular files",
		},
		&cli.DurationFlag{
			Name:  "reclaim-max-age",
			Usage: "Reclaim staged files older than this at startup",
		},
		&cli.DurationFlag{
			Name:  "handler-timeout",
			Usage: "Per-notification endpoint timeout",
		},
	}
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
