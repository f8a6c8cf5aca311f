package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/romdo/go-mergebounce/internal/cmds"
	"github.com/romdo/go-mergebounce/internal/config"
)

var version = "dev"

func configureLog(c *cli.Context) {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
			Level: level,
		})),
	)
}

// milliseconds returns the duration flag name in whole milliseconds, the
// resolution of the config file.
func milliseconds(c *cli.Context, name string) (int64, error) {
	d := c.Duration(name)
	if d%time.Millisecond != 0 {
		return 0, fmt.Errorf("--%s: %s is not a whole number of milliseconds", name, d)
	}

	return d.Milliseconds(), nil
}

func loadConfig(c *cli.Context) error {
	file, err := config.Read(c.String("config"))
	if err != nil {
		return err
	}

	// Flags take precedence over the config file.
	if c.IsSet("wait") {
		wait, err := milliseconds(c, "wait")
		if err != nil {
			return err
		}
		file.WaitMs = wait
	}
	if c.IsSet("max-wait") {
		maxWait, err := milliseconds(c, "max-wait")
		if err != nil {
			return err
		}
		file.MaxWaitMs = &maxWait
	}
	if c.IsSet("concat") {
		file.ConcatArrays = c.Bool("concat")
	}
	if c.IsSet("dedupe") {
		file.DedupeArrays = c.Bool("dedupe")
	}

	if err := file.Validate(); err != nil {
		return err
	}

	conf := file.Mergebounce()
	slog.Debug("Loaded config",
		"wait", conf.Wait, "max_wait", conf.MaxWait,
		"concat", conf.ConcatArrays, "dedupe", conf.DedupeArrays,
	)
	c.Context = cmds.WithConfig(c.Context, conf)

	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mergebounce",
		Usage: "debounce JSON values, merging every value of a burst into one",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log debug output to stderr",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
				Value: config.DefaultPath,
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "quiet period after the last value before emitting, in whole milliseconds",
			},
			&cli.DurationFlag{
				Name:  "max-wait",
				Usage: "maximum time a value can be held back while values keep coming, in whole milliseconds",
			},
			&cli.BoolFlag{
				Name:  "concat",
				Usage: "concatenate arrays instead of overlaying them by index",
			},
			&cli.BoolFlag{
				Name:  "dedupe",
				Usage: "concatenate arrays, dropping elements already present",
			},
		},
		Before: func(c *cli.Context) error {
			configureLog(c)

			return loadConfig(c)
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Prints the version",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "mergebounce %s\n", version)

					return nil
				},
			},
			{
				Name:   "stream",
				Usage:  "Merges newline-delimited JSON values from stdin",
				Action: cmds.Stream,
			},
			{
				Name:      "watch",
				Usage:     "Merges the contents of JSON files as they change",
				ArgsUsage: "<path>...",
				Action:    cmds.Watch,
			},
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
