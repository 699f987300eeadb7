// Package repositories implements SQLite persistence for resolution history.
//
// [ResolutionRepository] stores one row per successful track → video resolution, written by the resolver
// through [ResolutionRepository.Record]. Rows are soft deleted via deleted_at and excluded from queries by default.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
