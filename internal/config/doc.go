// Package config loads, normalizes, and validates coworker configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COWORKER_API_KEY. Per-workspace overrides live in .system/config.yml and are
// layered on top with WithWorkspace.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical modes, and clear validation errors. The Config
// value is passed down explicitly; there is no package-level state.
package config
