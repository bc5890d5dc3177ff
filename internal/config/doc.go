// Package config loads the calassist runtime configuration from the
// environment, optionally seeded from a .env file.
package config
