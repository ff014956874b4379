// Package sqlite persists object graphs and fetch history in one SQLite
// database, objects.db under the data directory, using the pure Go
// modernc.org/sqlite driver.
//
// A RecordStore keeps the objects and ordered relationships of one source
// and the FetchLogStore keeps the history of every source. The schema comes
// from the embedded migrations package; its version is tracked in
// PRAGMA user_version. The database runs in WAL mode with foreign keys on.
package sqlite
