// Package config loads and merges tribunal configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags, passed to [Load] as overrides
//  2. Environment variables (TRIBUNAL_PROVIDER, TRIBUNAL_FAIL_ON,
//     TRIBUNAL_CACHE_ENABLED, etc.)
//  3. Config file ($XDG_CONFIG_HOME/tribunal/config.yaml)
//  4. Built-in defaults
//
// Nested keys use dots in the file and overrides ("cache.enabled") and
// underscores in the environment.
package config
