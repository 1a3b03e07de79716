// Package config loads, normalizes, and validates arkline configuration.
//
// Configuration lives in a TOML file (~/.config/arkline/config.toml by
// default, with a project-local arkline.toml fallback). Loading always starts
// from Default so a missing file yields a usable configuration for local
// development, minus the registry credentials that Validate enforces when
// handle minting is enabled.
package config
