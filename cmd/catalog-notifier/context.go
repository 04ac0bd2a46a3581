package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-catalog-notifier/pkg/config"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
	"github.com/goliatone/go-catalog-notifier/pkg/notifier"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     config.Config
	configErr  error

	module *notifier.Module
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.LoadFile(path)
	})
	return c.config, c.configErr
}

// ensureModule builds the notifier once per invocation. Logs go to the
// command's stderr so stdout stays clean for tables and JSON.
func (c *commandContext) ensureModule(cmd *cobra.Command) (*notifier.Module, error) {
	if c.module != nil {
		return c.module, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	module, err := notifier.NewModule(commandContextOf(cmd), notifier.ModuleOptions{
		Config: cfg,
		Logger: logger.NewWriter(cmd.ErrOrStderr(), cfg.Logging.Format, cfg.Logging.Level),
	})
	if err != nil {
		return nil, err
	}
	c.module = module
	return module, nil
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) close() error {
	if c.module == nil {
		return nil
	}
	err := c.module.Close()
	c.module = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func commandContextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
