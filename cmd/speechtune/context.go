package main

import (
	"log/slog"
	"strings"
	"sync"

	"speechtune/internal/config"
	"speechtune/internal/logging"
	"speechtune/internal/runs"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// resolved hands each command its own value copy so flag overrides never
// leak between invocations.
func (c *commandContext) resolved() (config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

func (c *commandContext) openRuns(cfg *config.Config) (*runs.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return runs.Open(cfg.Paths.RunsDir)
}
