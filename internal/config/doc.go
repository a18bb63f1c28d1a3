// Package config loads, normalizes, and validates mixcraft configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks for the Redis connection and ntfy topic. The Config
// type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backends, and clear validation errors.
package config
