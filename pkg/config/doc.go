// Package config loads daemon configuration from a YAML file layered over
// production defaults, with a small set of environment variable overrides
// for the values that differ per deployment. Everything is validated before
// the daemon starts; a bad cadence or retention window fails fast.
package config
