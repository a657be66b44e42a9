// Package ragcontext assembles ranked chunks into prompt-ready context
// blocks under a token budget.
//
// The builder walks chunks in ranked order and packs greedily: the first
// chunk whose block would exceed the remaining budget stops packing, so
// ranking order is never traded for bin-packing optimality. Each packed
// chunk is rendered as a numbered block, and a "### Sources" section ties
// every [n] marker back to its source document and excerpt.
package ragcontext
