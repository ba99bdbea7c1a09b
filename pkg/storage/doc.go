// Package storage opens the relational database behind scribe and keeps its
// schema current.
//
// # Dialects
//
// Two drivers are supported:
//
//   - postgres (github.com/lib/pq): the production backend. Row locks taken
//     with SELECT ... FOR UPDATE serialize the admin lifecycle checks.
//   - sqlite3 (github.com/mattn/go-sqlite3): embedded backend for local
//     development and package tests. SQLite serializes writers, so row locks
//     are not needed and the pool is pinned to a single connection.
//
// Both dialects accept $n placeholders and RETURNING clauses, so stores share
// one set of queries.
//
// # Migrations
//
// Migrate applies the versioned schema in order and records each version in
// schema_migrations. Running it twice is a no-op.
//
//	db, dialect, err := storage.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := storage.Migrate(ctx, db, dialect); err != nil {
//		return err
//	}
//
// # Transactions
//
// Stores accept a Querier so the same method can run against the pool or an
// open *sql.Tx. WithTx wraps the begin/commit/rollback dance.
package storage
