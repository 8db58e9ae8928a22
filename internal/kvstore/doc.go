// Package kvstore persists flat JSON documents behind a small Store
// interface. Backends: MemoryStore for tests and ephemeral runs, FileStore
// (indented JSON, gofrs/flock lock file, atomic rename) and SQLiteStore
// (modernc.org/sqlite, one row per key, transactional updates).
//
// Every backend serializes Update so concurrent writers see last-writer-wins
// semantics without torn files.
package kvstore
