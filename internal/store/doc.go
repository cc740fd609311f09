// Package store provides a SQLite-backed journal of notable world events.
//
// The journal is an append-only audit trail, not world persistence: the
// world itself always starts fresh from its scene. Each entry records what
// happened (a connect, a refused connect, a disconnect, a spawn, a collision
// between two named bodies), who caused it, and the tick it happened on.
//
// # Ordering
//
//   - Entries are ordered by their autoincrement id, which follows append order
//   - tick is the engine's tick counter when the event was applied
//   - created_at is wall time in unix milliseconds and is informational only
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Writes from the engine go through Journal, which batches them on its own
// goroutine so the simulation loop never waits on disk.
package store
