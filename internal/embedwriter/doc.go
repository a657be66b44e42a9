// Package embedwriter backfills vectors for chunks ingested without
// embeddings. It lists pending chunks, embeds them in bounded batches
// through the embedding service, computes the sparse term vector
// locally, and writes both back with one idempotent update per chunk.
//
// Failures are contained at batch granularity: a chunk or batch that
// cannot be embedded is counted and reported in Statistics while the
// rest of the run proceeds. Re-running is always safe since only
// chunks still missing an embedding timestamp are selected.
package embedwriter
