// Package store persists the notetaker data model with GORM.
//
// PostgreSQL is the production database; SQLite (pure Go) is supported for
// single-node setups and tests. The schema is owned by Migrate, which runs
// GORM AutoMigrate over all models.
//
// Calendar events are unique per (account, external id). Re-synchronizing an
// event overwrites what the provider reports but never the locally owned
// recording toggle or agent id. Meetings are unique per agent, and attendees
// are shared across meetings, deduplicated by name and email.
package store
