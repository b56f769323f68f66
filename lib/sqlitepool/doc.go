// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool used by the
// bridge's store. It wraps zombiezen.com/go/sqlite with the pragmas a
// long-running bridge process wants: WAL journal mode, NORMAL
// synchronous, and a busy timeout so concurrent puppet resolution does
// not surface SQLITE_BUSY to callers.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL: readers never block the writer and vice versa.
//     Profile sync writes while message handlers read constantly.
//   - synchronous=NORMAL: commits survive process crashes. A commit
//     lost to power failure costs at most a re-sync: names and avatars
//     are re-fetched from the remote network, and registration is
//     re-derived because ghost registration tolerates "already exists".
//   - busy_timeout=5000: wait up to 5 seconds for the write lock
//     instead of failing immediately.
//   - foreign_keys=OFF: the schema declares no foreign keys; the store
//     layer owns referential integrity.
//   - cache_size=-4096: 4 MB page cache per connection. Bridge tables
//     are small.
//   - temp_store=MEMORY: temporary indexes in memory.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     cfg.Database.Path,
//	    PoolSize: cfg.Database.PoolSize,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return applyMigrations(conn)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// The package is intentionally thin: it applies pragmas and exposes
// the zombiezen types directly. The store writes SQL, uses
// sqlitex.Execute for cached statements, and manages transactions with
// sqlitex.ImmediateTransaction — no query builder, no ORM.
package sqlitepool
