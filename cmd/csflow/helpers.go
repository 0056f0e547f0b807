package main

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/csflow/internal/analyzer"
	"github.com/panbanda/csflow/internal/cache"
	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/pkg/config"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return nil, err
	}
	if cfg.Output.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	return cfg, nil
}

func colored(cfg *config.Config) bool {
	return cfg.Output.Color && !color.NoColor
}

// newFormatter honors --format and --output when the command defines them
// and falls back to the configured format and the app writer.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := cfg.Output.Format
	if c.IsSet("format") {
		format = c.String("format")
	}
	if path := c.String("output"); path != "" {
		return output.NewFormatter(output.ParseFormat(format), path, false)
	}
	return output.NewWriterFormatter(output.ParseFormat(format), c.App.Writer, colored(cfg)), nil
}

func newSession(c *cli.Context, cfg *config.Config) (*analyzer.Session, error) {
	opts := []analyzer.Option{analyzer.WithConfig(cfg), analyzer.WithVersion(version)}
	if cfg.Cache.Enabled && !c.Bool("no-cache") {
		rc, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
		if err != nil {
			return nil, err
		}
		opts = append(opts, analyzer.WithResultCache(rc))
	}
	return analyzer.New(opts...), nil
}

func warnf(c *cli.Context, format string, args ...any) {
	fmt.Fprintln(c.App.ErrWriter, color.YellowString(format, args...))
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, json, markdown, toon",
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write output to file",
	}
}

func methodFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "method",
		Aliases: []string{"m"},
		Usage:   "Method to inspect, such as Orders.Total (default: first method in the file)",
	}
}

func noCacheFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-cache",
		Usage: "Disable the result cache",
	}
}
