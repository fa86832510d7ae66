// Package store provides SQLite-backed durable storage for render traces.
//
// Every instruction log a host commits is recorded as a pass:
//   - Passes: pass id, host, first seq, output snapshot and its digest
//   - Instructions: the canonical record of each instruction, in log order
//   - Calls: the lifecycle calls queued with the log
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC, id ASC COLLATE BINARY so a replay reads records in
// exactly the order they were committed.
//
// # Idempotency
//
// A pass is keyed by (id, host). Writing the same pass twice is a no-op,
// which lets deterministic runs re-record into the same database.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Instruction and snapshot digests are computed via functions in
// internal/ir/hash.go using RFC 8785 canonical JSON and SHA-256 with domain
// separation.
package store
