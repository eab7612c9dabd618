// Package engine provides the storage engine core: a single SQLite-backed
// database handle exposing query, insert, update, delete, execute, and
// transaction operations to every downstream service.
//
// # Ownership model
//
// Exactly one live Handle exists per process. The handle owns the live
// database image, a scratch SQLite file in a private temp directory. The
// image is not durable on its own: durability comes only from explicit
// snapshots taken by the snapshot package. This mirrors an in-memory engine
// whose state survives only through serialized images.
//
// The handle is created explicitly (restored from a snapshot image via
// OpenImage, or fresh via Open), mutated through its life, and torn down
// only by an explicit Reset. There is no implicit teardown.
//
// # Execution model
//
//   - One connection (SetMaxOpenConns(1)): statements execute one at a time,
//     in submission order, never interleaved.
//   - A transaction holds the connection until commit or rollback; a second
//     transaction attempted while one is open queues behind it.
//   - Nested Transaction calls flatten into the outer transaction via
//     Tx.Transaction; there is no partial rollback of an inner body.
//
// # Statement construction
//
// All SQL is built by the sqlbuild package with parameterized values only.
// Execute and RawQuery are the escape hatches used internally by the
// migrator and bulk loader for DDL and pragma access.
package engine
