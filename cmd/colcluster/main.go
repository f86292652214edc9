// Command colcluster trains clustering configs for the column compressor
// and inspects sample files.
//
//	colcluster train --samples ./samples --trainer greedy --output config.yaml
//	colcluster train --samples s3://bucket/samples --ddb-table colcluster-commits --publish
//	colcluster inspect ./samples/0001.ccs
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/colcluster"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "colcluster:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "colcluster",
		Usage:                "train clustering configs for column compression graphs",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "minimum log level (debug, info, warn, error)",
				EnvVars: []string{"COLCLUSTER_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "write logs as JSON",
			},
		},
		Before: func(c *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
				return fmt.Errorf("bad value for --log-level %q: %w", c.String("log-level"), err)
			}
			return nil
		},
		Commands: []*cli.Command{
			trainCommand(),
			inspectCommand(),
		},
	}
}

// loggerFrom builds the logger selected by the global flags. Logs go to the
// app's error writer so stdout stays free for reports.
func loggerFrom(c *cli.Context) *colcluster.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.String("log-level")))

	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Bool("json") {
		return colcluster.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return colcluster.NewLogger(slog.NewTextHandler(w, opts))
}
