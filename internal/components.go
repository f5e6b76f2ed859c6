package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/provider"
	"github.com/starford/orgsync/internal/storage"
	"github.com/starford/orgsync/internal/syncer"
)

// Components are the collaborators shared by every command.
type Components struct {
	Config   *Config
	Logger   *slog.Logger
	Provider provider.Provider
	Store    *storage.FS
	// Document is the outline's name within Store.
	Document string
	// History is nil when history is disabled.
	History *history.DB
	Syncer  *syncer.Syncer
}

// Build wires provider, storage, history and syncer from cfg. extra options
// are applied to the syncer after the defaults.
func Build(cfg *Config, logger *slog.Logger, extra ...syncer.Option) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{Config: cfg, Logger: logger}

	store, name, err := storage.ForFile(cfg.Document.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c.Store, c.Document = store, name

	c.Provider, err = cfg.Provider.Build(logger)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}

	opts := []syncer.Option{syncer.WithLogger(logger)}
	if cfg.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
			c.Close()
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		c.History, err = history.Open(cfg.History.Path)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
		opts = append(opts, syncer.WithHistory(c.History))
	}
	c.Syncer = syncer.New(c.Provider, c.Store, append(opts, extra...)...)
	return c, nil
}

// Defaults returns the configured sync options for the outline.
func (c *Components) Defaults() syncer.Options {
	return c.Config.Sync.Options(c.Document)
}

// Close releases the provider and the history database.
func (c *Components) Close() error {
	var errs []error
	if c.Provider != nil {
		errs = append(errs, c.Provider.Close())
	}
	if c.History != nil {
		errs = append(errs, c.History.Close())
	}
	return errors.Join(errs...)
}
