package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Handle contains configuration for the handle registry adapter.
type Handle struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	Prefix         string `toml:"prefix"`
	AdminHandle    string `toml:"admin_handle"`
	AdminIndex     int    `toml:"admin_index"`
	PrivateKeyPath string `toml:"private_key_path"`
	ViewerHandle   string `toml:"viewer_handle"`
	IIIFBaseURL    string `toml:"iiif_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Ark contains configuration for the ARK minter service.
type Ark struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	NAAN           string `toml:"naan"`
	Shoulder       string `toml:"shoulder"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains dispatcher and minting behavior settings.
type Pipeline struct {
	WorkerCount      int `toml:"worker_count"`
	MintMaxAttempts  int `toml:"mint_max_attempts"`
	IdentifierLength int `toml:"identifier_length"`
}

// Defaults contains default metadata values applied by the generate step.
type Defaults struct {
	License             string `toml:"license"`
	Source              string `toml:"source"`
	AvailableYearOffset int    `toml:"available_year_offset"`
}

// Lookup contains configuration for external-record lookups.
type Lookup struct {
	RegistryPath string `toml:"registry_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for arkline.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the IPC socket
//   - Handle: handle registry connection and signing credentials
//   - Ark: ARK minter connection
//   - Pipeline: worker pool size and identifier minting bounds
//   - Defaults: metadata defaults consumed by the generate step
//   - Lookup: external-record registry location
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Handle   Handle   `toml:"handle"`
	Ark      Ark      `toml:"ark"`
	Pipeline Pipeline `toml:"pipeline"`
	Defaults Defaults `toml:"defaults"`
	Lookup   Lookup   `toml:"lookup"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/arkline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/arkline/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("arkline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the IPC socket path, defaulting under the data directory.
func (c *Config) SocketPath() string {
	if strings.TrimSpace(c.Paths.SocketPath) != "" {
		return c.Paths.SocketPath
	}
	return filepath.Join(c.Paths.DataDir, "arklined.sock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
