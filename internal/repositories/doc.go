// Package repositories implements SQLite persistence for batch history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [BatchRepository] : Finished album uploads with their per-track outcomes
//   - [BatchRecorder] : Adapter that lets the upload orchestrator record batches without knowing about SQL
//
// Sequence numbers provide stable, human-readable ordering (e.g., batch #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
