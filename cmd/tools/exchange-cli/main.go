// cmd/tools/exchange-cli/main.go
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "exchange-cli",
		Usage: "Operate the circular materials exchange from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "specify a config.yaml (default: configs/config.yaml lookup)",
			},
			&cli.StringFlag{
				Name:    "base-url",
				EnvVars: []string{"EXCHANGE_BASE_URL"},
				Usage:   "override exchange.base_url",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "listing pool: postgres, elasticsearch or exchange (default: matching.pool_source)",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "read the listing pool from a JSON array of listings instead",
			},
			&cli.StringFlag{
				Name:  "companies-file",
				Usage: "read the listing pool from a JSON array of demo company records instead",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level written to stderr",
			},
		},
		Commands: []*cli.Command{
			rankCmd,
			searchCmd,
			facetsCmd,
			analyzeCmd,
			askCmd,
			healthCmd,
			seedCmd,
		},
	}
}
