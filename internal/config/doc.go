// Package config loads preprocessor configuration from YAML files and
// RETLAB_* environment variables, with environment taking precedence.
package config
