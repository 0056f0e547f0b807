package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/csflow/internal/analyzer"
	"github.com/panbanda/csflow/internal/fileproc"
	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/internal/progress"
	"github.com/panbanda/csflow/internal/remote"
	"github.com/panbanda/csflow/internal/scanner"
	"github.com/panbanda/csflow/internal/vcs"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Find null dereferences, constant conditions and dead stores",
		ArgsUsage: "[path|owner/repo[@ref]...]",
		Flags: []cli.Flag{
			formatFlag(),
			outputFlag(),
			noCacheFlag(),
			&cli.StringFlag{
				Name:  "since",
				Usage: "Only analyze files changed since this git revision (plus uncommitted changes)",
			},
		},
		Action: runAnalyzeCmd,
	}
}

// showProgress is true when progress bars would reach a terminal.
func showProgress(c *cli.Context) bool {
	return c.App.ErrWriter == os.Stderr && isatty.IsTerminal(os.Stderr.Fd())
}

// resolveRemotes clones the repositories named in paths and returns the
// paths to analyze. cleanup removes the clones.
func resolveRemotes(c *cli.Context, paths []string) (local []string, cleanup func(), err error) {
	var sources []*remote.Source
	cleanup = func() {
		for _, src := range sources {
			src.Cleanup()
		}
	}
	var progressOut io.Writer
	if showProgress(c) {
		progressOut = c.App.ErrWriter
	}
	for _, path := range paths {
		src, err := remote.Parse(path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if src == nil {
			local = append(local, path)
			continue
		}
		slog.Info("Cloning repository", "url", src.URL, "ref", src.Ref)
		// History is needed to diff against --since.
		if err := src.Clone(c.Context, progressOut, c.String("since") == ""); err != nil {
			cleanup()
			return nil, nil, err
		}
		sources = append(sources, src)
		local = append(local, src.CloneDir)
	}
	return local, cleanup, nil
}

func runAnalyzeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	paths, cleanup, err := resolveRemotes(c, getPaths(c))
	if err != nil {
		return err
	}
	defer cleanup()

	var spinner *progress.Tracker
	if showProgress(c) {
		spinner = progress.NewSpinner("Scanning...")
	}
	files, err := scanner.NewScanner(cfg).Scan(paths)
	if spinner != nil {
		spinner.FinishSuccess()
	}
	if err != nil {
		return err
	}

	if since := c.String("since"); since != "" {
		root, err := filepath.Abs(paths[0])
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", paths[0], err)
		}
		changed, err := vcs.ChangedFiles(root, since)
		if err != nil {
			return fmt.Errorf("failed to list changes since %s: %w", since, err)
		}
		files = vcs.Intersect(files, changed)
	}

	if len(files) == 0 {
		warnf(c, "No C# source files found")
		return nil
	}

	sess, err := newSession(c, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := c.Context
	var bar *progress.Tracker
	if showProgress(c) {
		bar = progress.NewTracker("Analyzing...", len(files))
		ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(bar.Callback()))
	}
	analysis, err := sess.Analyze(ctx, files)
	var perrs *fileproc.ProcessingErrors
	if err != nil && !errors.As(err, &perrs) {
		if bar != nil {
			bar.FinishError(err)
		}
		return err
	}
	if bar != nil {
		bar.FinishSuccess()
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if formatter.Format() == output.FormatJSON {
		data, err := json.Marshal(analysis)
		if err != nil {
			return err
		}
		if err := output.ValidateJSON(data); err != nil {
			return fmt.Errorf("report does not match its schema: %w", err)
		}
	}
	if err := formatter.Output(&output.FlowReport{Analysis: analysis}); err != nil {
		return err
	}

	if perrs != nil {
		for _, msg := range perrs.Messages() {
			fmt.Fprintln(c.App.ErrWriter, color.RedString("  %s", msg))
		}
		return fmt.Errorf("%d of %d files could not be analyzed", len(perrs.Errors), len(files))
	}
	return nil
}
