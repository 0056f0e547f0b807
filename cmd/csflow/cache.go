package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/csflow/internal/cache"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number and size of cached results",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached result",
				Action: runCacheClear,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
}

func runCacheStats(c *cli.Context) error {
	rc, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := rc.GetStats()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d entries, %d bytes\n", stats.Entries, stats.TotalSize)
	return nil
}

func runCacheClear(c *cli.Context) error {
	rc, err := openCache(c)
	if err != nil {
		return err
	}
	if err := rc.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Cache cleared")
	return nil
}
