// Package config loads, normalizes, and validates reelforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as DASHSCOPE_API_KEY, EVOLINK_API_KEY, and REMOVE_BG_API_KEY.
// The Config type centralizes every knob the CLI, API server, pipeline, and
// recorder need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
