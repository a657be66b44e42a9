package types

import "time"

// Document is the read-side view of an ingested document. The retrieval
// core never mutates documents; it only needs the title for citations
// and the ID for candidate scoping.
type Document struct {
	ID        string
	Title     string
	Filename  string
	CreatedAt time.Time
}

// Conversation is the read-side view of a conversation, exposing the
// attached documents that bound the candidate scope for retrieval.
type Conversation struct {
	ID          string
	UserID      string
	DocumentIDs []string
}
