package rag

import (
	"time"

	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

// Outcome tags the terminal state of one pipeline invocation. Callers
// switch on it exhaustively instead of inspecting reason strings.
type Outcome int

const (
	// OutcomeCompleted means retrieval ran; Context may still be empty
	// when nothing matched.
	OutcomeCompleted Outcome = iota

	// OutcomeDisabled means retrieval is switched off by configuration.
	// An expected steady-state, not a fault.
	OutcomeDisabled

	// OutcomeNoDocuments means the candidate scope resolved to zero
	// documents or chunks.
	OutcomeNoDocuments
)

// String returns the outcome tag name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeNoDocuments:
		return "no_documents"
	}
	return "unknown"
}

// Result is the immutable outcome of one pipeline invocation. Only the
// retrieval log entry derived from it is persisted.
type Result struct {
	Outcome   Outcome
	Context   string // Assembled text, "" when nothing retrieved
	Citations []types.Citation

	// ChunksRetrieved counts chunks returned by search, which can exceed
	// the number packed into Context when the token budget truncates.
	ChunksRetrieved int

	Strategy          types.Strategy
	Scores            map[string]float64
	SkippedMismatched int
	Duration          time.Duration
}

// Success reports whether retrieval actually ran.
func (r *Result) Success() bool {
	return r.Outcome == OutcomeCompleted
}

// Reason returns the legacy reason string: "" on success, "disabled" or
// "no_documents" otherwise. Kept for the audit trail and API consumers.
func (r *Result) Reason() string {
	if r.Outcome == OutcomeCompleted {
		return ""
	}
	return r.Outcome.String()
}

// ExecutionMs returns wall-clock duration in milliseconds.
func (r *Result) ExecutionMs() int64 {
	return r.Duration.Milliseconds()
}
