package testsupport

import (
	"path/filepath"
	"testing"

	"arkline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithHandle enables the handle registry section with test values.
func WithHandle(baseURL, keyPath string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Handle.Enabled = true
		cfg.Handle.BaseURL = baseURL
		cfg.Handle.Prefix = "20.500.12345"
		cfg.Handle.AdminHandle = "0.NA/20.500.12345"
		cfg.Handle.PrivateKeyPath = keyPath
	}
}

// WithWorkerCount overrides the dispatcher worker count.
func WithWorkerCount(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.WorkerCount = n
	}
}
