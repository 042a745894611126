// Package store provides persistent storage for the relay using SQLite.
//
// # Architecture
//
// The Store interface covers the two tables the relay owns:
//
//   - users: registered identities, keyed by the derived user id
//   - exchanges: append-only user-message/assistant-reply pairs
//
// SQLiteStore implements the interface on modernc.org/sqlite with WAL mode
// and automatic schema creation. Timestamps are stored as RFC 3339 text in
// UTC for display; conversation order is defined by the autoincrement id,
// which is assigned under SQLite's write serialization and is monotone with
// insertion. The timestamp text is never used for ordering, since its
// variable-width fractional seconds do not compare lexicographically.
//
// # Ordering
//
// ListExchanges returns a user's full history oldest-first.
// ListRecentExchanges selects the newest N rows and reverses them, so both
// reads hand callers chronological order. Exchange rows are never updated or
// deleted; serialization of concurrent inserts is left to SQLite.
package store
