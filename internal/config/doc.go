// Package config loads runtime configuration from multiple sources (YAML files,
// dotenv files, environment variables, CLI flags) with precedence: CLI flags >
// YAML config > Environment variables > Defaults. A dotenv file only fills
// variables that are not already set in the environment.
package config
