package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/csflow/internal/fileproc"
	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for C# changes and re-analyze them",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			noCacheFlag(),
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before changed files are analyzed",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	sess, err := newSession(c, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	formatter := output.NewWriterFormatter(output.FormatText, c.App.Writer, colored(cfg))
	onChange := func(ctx context.Context, paths []string) {
		analysis, err := sess.Analyze(ctx, paths)
		var perrs *fileproc.ProcessingErrors
		if err != nil && !errors.As(err, &perrs) {
			fmt.Fprintln(c.App.ErrWriter, color.RedString("Analysis failed: %v", err))
			return
		}
		if err := formatter.Output(&output.FlowReport{Analysis: analysis}); err != nil {
			fmt.Fprintln(c.App.ErrWriter, color.RedString("Output failed: %v", err))
		}
		if perrs != nil {
			for _, msg := range perrs.Messages() {
				fmt.Fprintln(c.App.ErrWriter, color.RedString("  %s", msg))
			}
		}
	}

	watcher, err := watch.NewWatcher(absPath, cfg, onChange,
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithOutput(c.App.Writer, colored(cfg)),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(c.App.Writer, "\nStopping watch...")
	return nil
}
