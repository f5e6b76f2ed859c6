package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/orgsync/internal/apperr"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "orgsync",
		Usage: "Keep an Org-mode outline in step with GitHub or Gitea issues",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "orgsync.yaml",
				Value:       "orgsync.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("ORGSYNC_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Shorthand for --log-level debug",
			},
		},
		Commands: []*cli.Command{
			syncCommand(),
			checkCommand(),
			parseCommand(),
			historyCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}
}

func main() {
	if err := rootCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		if hint := apperr.HintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}
