// Package cmd implements the command-line interface for notetaker.
//
// This package provides the following commands:
//   - serve: Run the trigger API, the sweep scheduler and an in-process worker
//   - worker: Consume sweep jobs from the message queue
//   - sync: Synchronize calendars once for one or all users
//   - sweep: Run a single join, completion or sync sweep in the foreground
//   - migrate: Create or update the database schema
//   - version: Display version information
//
// Every command reads its settings from the environment, an optional .env
// file and the file passed with --config.
package cmd
