// Package config loads, normalizes, and validates courier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours COURIER_* environment overrides
// plus the legacy UPLOADER_SLEEP, FORCEWIFI, and FAKEUPLOAD switches. The
// Config type centralizes every knob the daemon and CLI need: where sessions
// live, how the device reports its state, which files belong to which upload
// tier, and which transport carries them.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
