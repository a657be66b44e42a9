// Package rag orchestrates the retrieval pipeline: candidate scope
// resolution, hybrid search, token-budgeted context assembly, and the
// append-only retrieval audit trail.
//
// # Outcomes
//
// Every invocation terminates in one of three tagged outcomes:
//
//	result, err := pipeline.Execute(ctx, query, scope, search.Options{})
//	if err != nil {
//	    // infrastructure fault (backend unreachable, store failure)
//	}
//	switch result.Outcome {
//	case rag.OutcomeDisabled:     // retrieval switched off in config
//	case rag.OutcomeNoDocuments:  // scope resolved to nothing
//	case rag.OutcomeCompleted:    // result.Context ready (possibly "")
//	}
//
// "Nothing to retrieve" is always a value, never an error; only genuine
// infrastructure faults propagate.
//
// # Best-Effort Side Effects
//
// Access-counter updates and retrieval logging are fire-and-forget:
// their failures are logged at Warn level and discarded, so a broken
// analytics path can never fail a conversation turn.
package rag
