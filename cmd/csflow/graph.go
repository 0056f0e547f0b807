package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/csflow/internal/analyzer"
	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/pkg/config"
)

var errFileRequired = errors.New("a C# source file is required")

func cfgCmd() *cli.Command {
	return &cli.Command{
		Name:      "cfg",
		Usage:     "Print the control-flow graph of a method",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			methodFlag(),
			formatFlag(),
			&cli.BoolFlag{
				Name:  "dot",
				Usage: "Print the graph in Graphviz DOT format",
			},
		},
		Action: runCFGCmd,
	}
}

func livenessCmd() *cli.Command {
	return &cli.Command{
		Name:      "liveness",
		Usage:     "Print the live variables at each block of a method",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{methodFlag(), formatFlag()},
		Action:    runLivenessCmd,
	}
}

func exploreCmd() *cli.Command {
	return &cli.Command{
		Name:      "explore",
		Usage:     "Explore the paths of a method symbolically",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			methodFlag(),
			formatFlag(),
			&cli.IntFlag{
				Name:  "max-steps",
				Usage: "Step budget (default: analysis.max_steps)",
			},
		},
		Action: runExploreCmd,
	}
}

// inspect loads the config and prepares the method named by --method in
// the file given as the first argument.
func inspect(c *cli.Context) (*analyzer.Session, *analyzer.Detail, *config.Config, error) {
	if c.Args().Len() == 0 {
		return nil, nil, nil, errFileRequired
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	sess := analyzer.New(analyzer.WithConfig(cfg), analyzer.WithVersion(version))
	d, err := sess.Inspect(c.Context, c.Args().First(), c.String("method"))
	if err != nil {
		sess.Close()
		return nil, nil, nil, err
	}
	return sess, d, cfg, nil
}

func render(c *cli.Context, cfg *config.Config, r output.Renderable) error {
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(r)
}

func runCFGCmd(c *cli.Context) error {
	sess, d, cfg, err := inspect(c)
	if err != nil {
		return err
	}
	defer sess.Close()

	if c.Bool("dot") {
		dot, err := d.Graph.DOT(d.Name)
		if err != nil {
			return fmt.Errorf("failed to render graph: %w", err)
		}
		fmt.Fprintln(c.App.Writer, dot)
		return nil
	}
	return render(c, cfg, &output.CFGReport{View: analyzer.CFGView(d)})
}

func runLivenessCmd(c *cli.Context) error {
	sess, d, cfg, err := inspect(c)
	if err != nil {
		return err
	}
	defer sess.Close()
	return render(c, cfg, &output.LivenessReport{View: analyzer.LivenessView(d)})
}

func runExploreCmd(c *cli.Context) error {
	maxSteps := c.Int("max-steps")
	if maxSteps < 0 {
		return fmt.Errorf("--max-steps must not be negative (got %d)", maxSteps)
	}
	sess, d, cfg, err := inspect(c)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Explore(d, maxSteps)
	if err != nil {
		return err
	}
	return render(c, cfg, &output.ExplorationReport{View: analyzer.ExplorationView(d, res)})
}
