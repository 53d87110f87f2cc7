// Package config provides configuration loading for the workflow core:
// a typed Config struct tree plus a Loader builder with
// defaults -> YAML file -> environment variable precedence.
package config
