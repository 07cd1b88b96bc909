// Package config loads, normalizes, and validates xnatflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// XNAT_PASSWORD. The Config type centralizes every knob the tracker, the
// notification service, and the CLI need, so remote credentials, mail relay
// settings, and state directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
