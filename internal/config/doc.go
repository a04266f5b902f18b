// Package config loads publishom's runtime configuration.
//
// Values are layered as defaults, an optional YAML file, PUBLISHOM_*
// environment variables and finally command-line flags. The decoded Config
// is validated once and then treated as read-only.
package config
