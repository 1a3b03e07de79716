package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateHandle(); err != nil {
		return err
	}
	if err := c.validateArk(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateHandle() error {
	if !c.Handle.Enabled {
		return nil
	}
	if c.Handle.BaseURL == "" {
		return errors.New("handle.base_url must be set when handle.enabled is true")
	}
	if c.Handle.Prefix == "" {
		return errors.New("handle.prefix must be set when handle.enabled is true")
	}
	if c.Handle.AdminHandle == "" {
		return errors.New("handle.admin_handle must be set when handle.enabled is true")
	}
	if c.Handle.PrivateKeyPath == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/arkline/config.toml"
		}
		return fmt.Errorf("handle.private_key_path is required when handle.enabled is true. Edit %s (create with 'arkline config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateArk() error {
	if !c.Ark.Enabled {
		return nil
	}
	if c.Ark.BaseURL == "" {
		return errors.New("ark.base_url must be set when ark.enabled is true")
	}
	if c.Ark.NAAN == "" {
		return errors.New("ark.naan must be set when ark.enabled is true")
	}
	if c.Ark.Token == "" {
		return errors.New("ark.token must be set when ark.enabled is true (or export ARKLINE_MINTER_TOKEN)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.WorkerCount <= 0 {
		return errors.New("pipeline.worker_count must be positive")
	}
	if c.Pipeline.MintMaxAttempts <= 0 {
		return errors.New("pipeline.mint_max_attempts must be positive")
	}
	if c.Pipeline.IdentifierLength < 2 {
		return errors.New("pipeline.identifier_length must be at least 2")
	}
	if c.Defaults.AvailableYearOffset < 0 {
		return errors.New("defaults.available_year_offset must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
