// Package cmd provides CLI commands for the warroom binary.
package cmd

import "github.com/urfave/cli/v2"

// DefaultBackendURL is used when neither --backend nor backend.url is set.
const DefaultBackendURL = "http://localhost:8000"

// Shared output flags.
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
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Render with the terminal dashboard",
	}
)

// Shared connection flags.
var (
	// ConfigFlag points at a warroom.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default: ./warroom.yaml if present)",
		EnvVars: []string{"WARROOM_CONFIG"},
	}

	// BackendFlag overrides backend.url.
	BackendFlag = &cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "Backend HTTP base URL",
		EnvVars: []string{"WARROOM_BACKEND"},
	}

	// TimeoutFlag overrides backend.timeout.
	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Per-request timeout for backend calls",
	}
)

// ReadOnlyFlags returns the shared output flags. Includes --tui so that
// commands without a dashboard can reject it explicitly instead of failing
// with a generic "flag not defined" error.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// BackendFlags returns the output flags plus the flags that locate the
// backend.
func BackendFlags() []cli.Flag {
	return append(ReadOnlyFlags(), ConfigFlag, BackendFlag, TimeoutFlag)
}
