package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"coworker/internal/catalog"
	"coworker/internal/config"
	"coworker/internal/extractcache"
	"coworker/internal/logging"
	"coworker/internal/manifest"
	"coworker/internal/workspace"
)

type commandContext struct {
	configFlag *string
	pathFlag   *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, pathFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		pathFlag:   pathFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) layout() (workspace.Layout, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return workspace.Layout{}, err
	}
	var override string
	if c.pathFlag != nil {
		override = *c.pathFlag
	}
	root, err := cfg.WorkspaceRoot(override)
	if err != nil {
		return workspace.Layout{}, err
	}
	return workspace.New(root)
}

// environment is the resolved state most commands work against.
type environment struct {
	cfg      *config.Config
	layout   workspace.Layout
	logger   *slog.Logger
	cache    *extractcache.Cache
	manifest *manifest.Log
	catalog  *catalog.Store
}

func (e *environment) Close() {
	if e.catalog != nil {
		_ = e.catalog.Close()
	}
}

// openEnvironment applies the workspace overrides, builds the logger and
// opens the workspace stores. The catalog is only opened for an initialised
// workspace.
func (c *commandContext) openEnvironment() (*environment, error) {
	base, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	layout, err := c.layout()
	if err != nil {
		return nil, err
	}
	cfg := base
	settings, exists, err := config.LoadWorkspaceSettings(layout.Config)
	if err != nil {
		return nil, err
	}
	if exists {
		if cfg, err = base.WithWorkspace(settings); err != nil {
			return nil, err
		}
	}

	logDir := ""
	if layout.IsValid() {
		logDir = layout.Logs
	}
	logger, err := logging.NewFromConfig(cfg, logDir)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	env := &environment{
		cfg:      cfg,
		layout:   layout,
		logger:   logger,
		cache:    extractcache.New(layout.Cache, logger),
		manifest: manifest.Open(layout.Manifest),
	}
	if layout.IsValid() {
		store, err := catalog.Open(layout.Catalog)
		if err != nil {
			logging.WarnWithContext(logger, "catalog unavailable", "catalog_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete .system/catalog.db to rebuild it on the next run"),
				logging.String(logging.FieldImpact, "list and undo cannot use the catalog"),
			)
		} else {
			env.catalog = store
		}
	}
	return env, nil
}

func (e *environment) requireWorkspace() error {
	if !e.layout.IsValid() {
		return fmt.Errorf("%s is not a coworker workspace (run 'coworker init' first)", e.layout.Root)
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
