// Package storage persists the retrieval core's durable state in SQLite:
// chunks with their dense/sparse vectors, the content-addressed embedding
// cache, the append-only retrieval log, and the document/conversation
// read-side used for candidate scoping.
//
// # Build Modes
//
// Two SQLite drivers are supported, selected at build time:
//
//	CGO_ENABLED=0 go build -tags "purego" ./...     # modernc.org/sqlite
//	CGO_ENABLED=1 go build -tags "cgo_sqlite" ./... # mattn/go-sqlite3
//
// # Vector Storage
//
// Dense vectors are stored as little-endian float32 blobs; sparse
// term-weight maps as JSON text. Cosine similarity over candidate sets
// is computed in Go — the candidate scope is always pre-filtered by the
// caller, so no approximate-nearest-neighbor index is involved.
//
// # Concurrency
//
// The database runs in WAL mode with a single writer connection. Every
// Store operation is a single read or a single idempotent write;
// embedding-cache writes use INSERT OR IGNORE so concurrent puts for the
// same content hash race safely.
package storage
