package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/orgsync/internal"
	pkgconfig "github.com/starford/orgsync/pkg/config"
)

// providerFlags are shared by every command that talks to the issue source.
func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Issue provider (github, gitea)",
		},
		&cli.StringFlag{
			Name:    "gitea-url",
			Usage:   "Gitea base URL",
			Sources: cli.EnvVars("GITEA_URL"),
		},
		&cli.StringFlag{
			Name:    "gitea-token",
			Usage:   "Gitea access token",
			Sources: cli.EnvVars("GITEA_TOKEN"),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for one provider call",
		},
	}
}

// loadConfig reads the optional config file, applies the flags that were
// set on the command line and validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := pkgconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cli.Command, cfg *internal.Config) error {
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}

	if cmd.IsSet("provider") {
		cfg.Provider.Kind = cmd.String("provider")
	}
	if cmd.IsSet("gitea-url") {
		cfg.Provider.Gitea.URL = cmd.String("gitea-url")
		if !cmd.IsSet("provider") {
			cfg.Provider.Kind = "gitea"
		}
	}
	if cmd.IsSet("gitea-token") {
		cfg.Provider.Gitea.Token = cmd.String("gitea-token")
	}
	if cmd.IsSet("timeout") {
		cfg.Provider.Timeout = cmd.Duration("timeout")
	}

	if cmd.IsSet("output") {
		cfg.Document.Path = cmd.String("output")
	}
	if cmd.IsSet("state") {
		cfg.Sync.State = cmd.String("state")
	}
	if cmd.IsSet("limit") {
		cfg.Sync.Limit = int(cmd.Int("limit"))
	}
	if cmd.Bool("no-comments") {
		cfg.Sync.Comments = false
	}
	if cmd.Bool("no-backup") {
		cfg.Sync.Backup = false
	}
	if cmd.Bool("no-link-tag") {
		cfg.Sync.LinkTag = false
	}
	if cmd.Bool("no-history") {
		cfg.History.Enabled = false
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("interval") {
		cfg.Sync.Interval = cmd.Duration("interval")
	}
	if repo := cmd.Args().First(); repo != "" && cmd.Name == "sync" {
		cfg.Sync.Repo = repo
	}
	return nil
}

// cliLogger writes to stderr so stdout stays free for command output and
// the MCP transport.
func cliLogger(cfg *internal.Config) *slog.Logger {
	logger := cfg.App.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return logger
}
