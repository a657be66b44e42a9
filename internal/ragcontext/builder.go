package ragcontext

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

const (
	// DefaultMaxContextTokens caps the packed context size.
	DefaultMaxContextTokens = 4000

	// ChunkOverheadTokens is the fixed per-chunk allowance for the
	// citation marker and header lines around the content.
	ChunkOverheadTokens = 8

	// ExcerptRunes bounds citation excerpt length.
	ExcerptRunes = 120
)

// Options configures context assembly.
type Options struct {
	// MaxContextTokens is the packing budget. Default 4000.
	MaxContextTokens int

	// IncludeMetadata renders the section title line per chunk.
	IncludeMetadata bool

	// IncludeCitations appends the "### Sources" section.
	IncludeCitations bool
}

// DefaultOptions returns the documented defaults (metadata and
// citations both on).
func DefaultOptions() Options {
	return Options{
		MaxContextTokens: DefaultMaxContextTokens,
		IncludeMetadata:  true,
		IncludeCitations: true,
	}
}

// DocumentResolver supplies document titles for citations. Implemented
// by the storage layer; a nil resolver degrades to document IDs.
type DocumentResolver interface {
	ListDocuments(ctx context.Context, ids []string) ([]*types.Document, error)
}

// Builder converts ranked search results into prompt-ready context
// blocks under a token budget, with numbered citations.
type Builder struct {
	docs DocumentResolver
	log  *logrus.Logger
}

// NewBuilder creates a context builder. docs may be nil; titles then
// fall back to document IDs.
func NewBuilder(docs DocumentResolver, log *logrus.Logger) *Builder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{docs: docs, log: log}
}

// Build renders the search result into a context string. Returns ""
// when the result is empty; callers treat that as "no context
// available", not an error.
//
// Items are walked in their given ranked order. A chunk whose formatted
// block would exceed the remaining budget stops packing entirely:
// ranking order is preserved over bin-packing optimality.
func (b *Builder) Build(ctx context.Context, result *types.SearchResult, query string, opts Options) string {
	if result == nil || result.Empty() {
		return ""
	}
	return b.render(ctx, b.pack(result.Items, opts), query, opts)
}

// FormatForPrompt is the direct entry point for chunks already chosen
// by another caller, bypassing a full SearchResult.
func (b *Builder) FormatForPrompt(ctx context.Context, chunks []*types.Chunk, query string, opts Options) string {
	if len(chunks) == 0 {
		return ""
	}
	return b.render(ctx, b.pack(chunks, opts), query, opts)
}

// Pack returns the prefix of chunks that fits the token budget, without
// rendering. Exposed so the pipeline can cite exactly what Build packs.
func (b *Builder) Pack(chunks []*types.Chunk, opts Options) []*types.Chunk {
	return b.pack(chunks, opts)
}

func (b *Builder) pack(chunks []*types.Chunk, opts Options) []*types.Chunk {
	budget := opts.MaxContextTokens
	if budget <= 0 {
		budget = DefaultMaxContextTokens
	}

	var packed []*types.Chunk
	used := 0
	for _, chunk := range chunks {
		block := chunkTokens(chunk) + ChunkOverheadTokens
		if used+block > budget {
			break
		}
		used += block
		packed = append(packed, chunk)
	}
	return packed
}

// render formats the packed chunks into the final context block.
func (b *Builder) render(ctx context.Context, packed []*types.Chunk, query string, opts Options) string {
	if len(packed) == 0 {
		return ""
	}

	titles := b.resolveTitles(ctx, packed)

	var sb strings.Builder
	sb.WriteString("## Retrieved Context\n\n")
	sb.WriteString(fmt.Sprintf("for query: %s\n\n", query))

	for i, chunk := range packed {
		sb.WriteString(fmt.Sprintf("[%d]", i+1))
		if opts.IncludeMetadata && chunk.SectionTitle != "" {
			sb.WriteString(" " + chunk.SectionTitle)
		}
		sb.WriteString("\n")
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")
	}

	if opts.IncludeCitations {
		sb.WriteString("### Sources\n")
		for i, chunk := range packed {
			sb.WriteString(fmt.Sprintf("[%d] %s — %s\n", i+1, titles[chunk.DocumentID], chunk.Excerpt(ExcerptRunes)))
		}
	}

	return sb.String()
}

// ExtractCitations builds citation entries for an arbitrary chunk
// collection, in the given order. Used by the pipeline to expose
// citations separately from the inline context string.
func (b *Builder) ExtractCitations(ctx context.Context, chunks []*types.Chunk) []types.Citation {
	if len(chunks) == 0 {
		return []types.Citation{}
	}

	titles := b.resolveTitles(ctx, chunks)
	citations := make([]types.Citation, len(chunks))
	for i, chunk := range chunks {
		citations[i] = types.Citation{
			Label:         i + 1,
			Excerpt:       chunk.Excerpt(ExcerptRunes),
			ChunkID:       chunk.ID,
			DocumentID:    chunk.DocumentID,
			DocumentTitle: titles[chunk.DocumentID],
		}
	}
	return citations
}

// TotalTokens sums token counts across a chunk collection.
func TotalTokens(chunks []*types.Chunk) int {
	total := 0
	for _, chunk := range chunks {
		total += chunkTokens(chunk)
	}
	return total
}

// chunkTokens prefers the precomputed count, falling back to the
// heuristic estimate for chunks ingested without one.
func chunkTokens(chunk *types.Chunk) int {
	if chunk.TokenCount > 0 {
		return chunk.TokenCount
	}
	return chunk.EstimateTokens()
}

// resolveTitles maps document IDs to titles, degrading to the ID when
// the resolver is absent or fails. A title lookup failure must never
// fail context assembly.
func (b *Builder) resolveTitles(ctx context.Context, chunks []*types.Chunk) map[string]string {
	titles := make(map[string]string)
	var ids []string
	for _, chunk := range chunks {
		if _, seen := titles[chunk.DocumentID]; !seen {
			titles[chunk.DocumentID] = chunk.DocumentID // Fallback
			ids = append(ids, chunk.DocumentID)
		}
	}

	if b.docs == nil {
		return titles
	}

	docs, err := b.docs.ListDocuments(ctx, ids)
	if err != nil {
		b.log.WithError(err).Warn("document title lookup failed, citing by ID")
		return titles
	}
	for _, doc := range docs {
		if doc.Title != "" {
			titles[doc.ID] = doc.Title
		}
	}
	return titles
}
