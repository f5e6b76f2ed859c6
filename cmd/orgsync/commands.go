package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/orgsync/internal"
	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/mcpserver"
	"github.com/starford/orgsync/internal/syncer"
)

func syncCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Org file to update",
		},
		&cli.StringFlag{
			Name:    "state",
			Aliases: []string{"s"},
			Usage:   "Issue state to fetch (all, open, closed)",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Maximum number of issues (0 for no limit)",
		},
		&cli.BoolFlag{
			Name:  "no-comments",
			Usage: "Do not add comments as child headings",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "Merge and report without writing the file",
		},
		&cli.BoolFlag{
			Name:  "no-backup",
			Usage: "Do not keep a .bak copy of the previous file",
		},
		&cli.BoolFlag{
			Name:  "no-link-tag",
			Usage: "Do not tag synced headings with LINK",
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "Do not record the run in the history database",
		},
	}
	return &cli.Command{
		Name:      "sync",
		Usage:     "Fetch issues and merge them into the Org file",
		ArgsUsage: "[OWNER/REPO]",
		Flags:     append(flags, providerFlags()...),
		Action:    runSync,
	}
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Sync.Repo == "" {
		return fmt.Errorf("%w: repository is required (argument or sync.repo)", apperr.ErrInvalidRepo)
	}
	comps, err := internal.Build(cfg, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer comps.Close()

	opts := comps.Defaults()
	opts.DryRun = cmd.Bool("dry-run")
	res, err := comps.Syncer.Sync(ctx, opts)
	if err != nil {
		return err
	}
	printResult(os.Stdout, res, cfg.Document.Path)
	return nil
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify that the issue provider is reachable and authenticated",
		Flags: providerFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := cfg.Provider.Build(cliLogger(cfg))
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.CheckConnection(ctx); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: connection OK\n", p.Kind())
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Show the structure of an Org file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (table, yaml, json)",
				Value:   formatTable,
			},
			&cli.BoolFlag{
				Name:  "headings",
				Usage: "List every heading",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("parse: FILE is required")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			headings := cmd.Bool("headings") || cmd.Bool("verbose")
			sum := syncer.Summarize(path, string(data), headings)
			return printSummary(os.Stdout, &sum, cmd.String("format"))
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recent sync runs, or show one run",
		ArgsUsage: "[RUN_ID]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs",
				Value:   20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled (history.enabled: false)")
			}
			comps, err := internal.Build(cfg, cliLogger(cfg))
			if err != nil {
				return err
			}
			defer comps.Close()

			if id := cmd.Args().First(); id != "" {
				run, err := comps.Syncer.Run(id)
				if err != nil {
					return err
				}
				printRun(os.Stdout, run)
				return nil
			}
			runs, err := comps.Syncer.Runs(int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			printRuns(os.Stdout, runs)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "HTTP port",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Periodic sync interval (0 disables)",
		},
	}
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, document watcher and periodic sync",
		Flags: append(flags, providerFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve orgsync tools over MCP on stdio",
		Flags: providerFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			comps, err := internal.Build(cfg, cliLogger(cfg))
			if err != nil {
				return err
			}
			defer comps.Close()
			return mcpserver.New(comps.Syncer, comps.Defaults()).ServeStdio()
		},
	}
}
