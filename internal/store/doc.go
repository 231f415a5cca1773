// Package store provides SQLite-backed durable storage for the offline
// relay.
//
// Collections:
//   - Location Updates: queued position readings awaiting replay
//   - Emergency Alerts: queued alerts awaiting replay (high priority)
//   - App Settings: keyed configuration values
//   - Cache Entries: static assets grouped by cache generation
//
// Queued collections carry secondary indexes on the synced flag and on
// timestamp: the synced index drives pending-record queries and purge,
// the timestamp index drives oldest-first cap eviction.
//
// Opening is idempotent - schema creation uses CREATE IF NOT EXISTS and
// PRAGMA user_version migrations, so reopening an initialized database
// never wipes collections. Handle layers single-flight lazy opening on
// top so concurrent first users share one initialization.
//
// Storage failures are surfaced as errors and left to callers: the queue
// layer logs them and treats the affected record as not-yet-stored. This
// store is a best-effort durability cache, not a guaranteed log.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
