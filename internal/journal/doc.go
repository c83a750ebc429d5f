// Package journal provides a SQLite-backed, append-only log of dispatched
// actions.
//
// Every dispatch that reaches the store is recorded once, whether the
// reduction succeeded or failed:
//   - the session it belongs to and its logical sequence number
//   - the action type, selector, method, canonical args and member target
//   - the hash and JSON of the organism's resulting state
//
// # Ordering
//
// Ordering uses the seq column from a logical Clock, never wall time. Reads
// are always ORDER BY seq ASC, id ASC COLLATE BINARY so a session prints
// identically every time.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Entry IDs are content addressed via ir.ActionID, so re-appending the same
// (session, seq, action) is a no-op.
package journal
