// Package config loads the process configuration from the environment, an
// optional .env file and an optional config file.
package config
