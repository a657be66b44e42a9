package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anulax1225/chinese-worker-sub002/internal/ragcontext"
	"github.com/anulax1225/chinese-worker-sub002/internal/search"
	"github.com/anulax1225/chinese-worker-sub002/internal/storage"
	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

// Scope is the caller-authorized candidate set for one retrieval. The
// caller is responsible for excluding unauthorized documents before
// constructing it.
type Scope struct {
	DocumentIDs []string
}

// ScopeForDocument scopes retrieval to a single document.
func ScopeForDocument(documentID string) Scope {
	return Scope{DocumentIDs: []string{documentID}}
}

// ScopeForDocuments scopes retrieval to a document list.
func ScopeForDocuments(documentIDs []string) Scope {
	return Scope{DocumentIDs: documentIDs}
}

// Empty reports whether the scope names no documents.
func (s Scope) Empty() bool {
	return len(s.DocumentIDs) == 0
}

// identity carries the nullable caller identifiers injected into the
// retrieval log.
type identity struct {
	conversationID *string
	userID         *string
}

// Pipeline orchestrates retrieval: scope resolution, search, context
// assembly, and best-effort audit logging. One invocation runs
// synchronously to completion; invocations share no mutable state
// beyond the embedding cache and the store.
type Pipeline struct {
	store    storage.Store
	searcher *search.Service
	builder  *ragcontext.Builder
	cfg      Config
	log      *logrus.Logger
}

// New creates a pipeline. log may be nil for the standard logger.
func New(store storage.Store, searcher *search.Service, builder *ragcontext.Builder, cfg Config, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		store:    store,
		searcher: searcher,
		builder:  builder,
		cfg:      cfg,
		log:      log,
	}
}

// Execute runs one retrieval for the query over the given scope.
//
// Structural "nothing to retrieve" conditions (disabled, empty scope)
// come back as tagged results, never as errors. Genuine infrastructure
// faults — an unreachable embedding backend, a failed candidate query —
// propagate as errors so callers can tell a failed retrieval from an
// empty one.
func (p *Pipeline) Execute(ctx context.Context, query string, scope Scope, opts search.Options) (*Result, error) {
	return p.execute(ctx, query, scope, opts, identity{})
}

// ExecuteForConversation resolves the candidate scope from the
// conversation's attached documents and stamps the conversation and
// user identifiers into the retrieval log.
func (p *Pipeline) ExecuteForConversation(ctx context.Context, conv *types.Conversation, query string, opts search.Options) (*Result, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is required")
	}

	id := identity{conversationID: &conv.ID}
	if conv.UserID != "" {
		userID := conv.UserID
		id.userID = &userID
	}

	return p.execute(ctx, query, ScopeForDocuments(conv.DocumentIDs), opts, id)
}

func (p *Pipeline) execute(ctx context.Context, query string, scope Scope, opts search.Options, id identity) (*Result, error) {
	start := time.Now()

	// Disabled short-circuits before any candidate resolution or search.
	if !p.cfg.Enabled {
		return &Result{Outcome: OutcomeDisabled, Duration: time.Since(start)}, nil
	}

	if scope.Empty() {
		return &Result{Outcome: OutcomeNoDocuments, Duration: time.Since(start)}, nil
	}

	candidates, err := p.store.ListChunksByDocuments(ctx, scope.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve candidate scope: %w", err)
	}
	if len(candidates) == 0 {
		return &Result{Outcome: OutcomeNoDocuments, Duration: time.Since(start)}, nil
	}

	searchOpts := p.mergeSearchOpts(opts)
	searchResult, err := p.searcher.Search(ctx, query, candidates, searchOpts)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// Best-effort side effects: access counters and the audit log must
	// never fail a conversation turn.
	p.recordAccess(ctx, searchResult)
	p.logRetrieval(ctx, query, searchResult, id, time.Since(start))

	result := &Result{
		Outcome:           OutcomeCompleted,
		Strategy:          searchResult.Strategy,
		Scores:            searchResult.Scores,
		SkippedMismatched: searchResult.SkippedMismatched,
		ChunksRetrieved:   len(searchResult.Items),
		Citations:         []types.Citation{},
	}

	if !searchResult.Empty() {
		// Cite exactly the chunks the budget let into the context so
		// every [n] marker matches one citation entry.
		packed := p.builder.Pack(searchResult.Items, p.cfg.Context)
		result.Context = p.builder.Build(ctx, searchResult, query, p.cfg.Context)
		result.Citations = p.builder.ExtractCitations(ctx, packed)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// mergeSearchOpts overlays per-invocation options onto configured
// defaults.
func (p *Pipeline) mergeSearchOpts(opts search.Options) search.Options {
	merged := p.cfg.Search
	if opts.Strategy != "" {
		merged.Strategy = opts.Strategy
	}
	if opts.TopK != 0 {
		merged.TopK = opts.TopK
	}
	if opts.SimilarityThreshold != 0 {
		merged.SimilarityThreshold = opts.SimilarityThreshold
	}
	if opts.HybridAlpha != 0 {
		merged.HybridAlpha = opts.HybridAlpha
	}
	if opts.RRFK != 0 {
		merged.RRFK = opts.RRFK
	}
	if opts.UseCache {
		merged.UseCache = true
	}
	if opts.CacheTTL != 0 {
		merged.CacheTTL = opts.CacheTTL
	}
	return merged
}

// recordAccess bumps access counters for retrieved chunks. Failures are
// downgraded to warnings.
func (p *Pipeline) recordAccess(ctx context.Context, result *types.SearchResult) {
	if result.Empty() {
		return
	}

	ids := make([]string, len(result.Items))
	for i, chunk := range result.Items {
		ids[i] = chunk.ID
	}
	if err := p.store.TouchChunks(ctx, ids); err != nil {
		p.log.WithError(err).Warn("failed to record chunk access")
	}
}

// logRetrieval appends the audit trail entry. Failures are downgraded
// to warnings: retrieval must never fail merely because analytics
// logging did.
func (p *Pipeline) logRetrieval(ctx context.Context, query string, result *types.SearchResult, id identity, elapsed time.Duration) {
	chunkIDs := make([]string, len(result.Items))
	var totalScore float64
	for i, chunk := range result.Items {
		chunkIDs[i] = chunk.ID
		totalScore += result.Scores[chunk.ID]
	}

	avgScore := 0.0
	if len(result.Items) > 0 {
		avgScore = totalScore / float64(len(result.Items))
	}

	entry := &storage.RetrievalLog{
		ID:                uuid.NewString(),
		ConversationID:    id.conversationID,
		UserID:            id.userID,
		Query:             query,
		RetrievedChunkIDs: chunkIDs,
		Strategy:          string(result.Strategy),
		Scores:            result.Scores,
		ExecutionTimeMs:   elapsed.Milliseconds(),
		ChunksFound:       len(result.Items),
		AverageScore:      avgScore,
	}

	if err := p.store.InsertRetrievalLog(ctx, entry); err != nil {
		p.log.WithError(err).Warn("failed to write retrieval log")
	}
}
