package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeHandle(); err != nil {
		return err
	}
	if err := c.normalizeArk(); err != nil {
		return err
	}
	c.normalizeLookup()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) != "" {
		if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
			return fmt.Errorf("paths.socket_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeHandle() error {
	c.Handle.BaseURL = strings.TrimRight(strings.TrimSpace(c.Handle.BaseURL), "/")
	c.Handle.Prefix = strings.Trim(strings.TrimSpace(c.Handle.Prefix), "/")
	c.Handle.AdminHandle = strings.TrimSpace(c.Handle.AdminHandle)
	c.Handle.ViewerHandle = strings.TrimSpace(c.Handle.ViewerHandle)
	c.Handle.IIIFBaseURL = strings.TrimRight(strings.TrimSpace(c.Handle.IIIFBaseURL), "/")
	if strings.TrimSpace(c.Handle.PrivateKeyPath) != "" {
		expanded, err := expandPath(c.Handle.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("handle.private_key_path: %w", err)
		}
		c.Handle.PrivateKeyPath = expanded
	}
	if c.Handle.AdminIndex <= 0 {
		c.Handle.AdminIndex = defaultHandleAdminIndex
	}
	if c.Handle.TimeoutSeconds <= 0 {
		c.Handle.TimeoutSeconds = defaultHandleTimeout
	}
	return nil
}

func (c *Config) normalizeArk() error {
	if c.Ark.Token == "" {
		if value, ok := os.LookupEnv("ARKLINE_MINTER_TOKEN"); ok {
			c.Ark.Token = strings.TrimSpace(value)
		}
	}
	c.Ark.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ark.BaseURL), "/")
	c.Ark.NAAN = strings.TrimSpace(c.Ark.NAAN)
	c.Ark.Shoulder = strings.TrimSpace(c.Ark.Shoulder)
	if c.Ark.Shoulder == "" {
		c.Ark.Shoulder = defaultArkShoulder
	}
	if c.Ark.TimeoutSeconds <= 0 {
		c.Ark.TimeoutSeconds = defaultArkTimeout
	}
	return nil
}

func (c *Config) normalizeLookup() {
	c.Lookup.RegistryPath = strings.TrimSpace(c.Lookup.RegistryPath)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
