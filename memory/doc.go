// Package memory keeps a bounded, hashed ledger of conversation turns.
//
// A Manager holds at most MaxInteractions active interactions. When the
// window overflows, the oldest block is folded into a Summary; when the
// summaries overflow, the oldest summaries are folded into a MetaSummary
// (a Summary with Range.MetaLevel set). Every Interaction and Summary
// carries a sha256 hash of its defining fields, checked by Verify.
//
// Collaborators are optional and pluggable:
//   - Storage: persistence per owner per day (store/inmem, store/file, store/sqlite)
//   - Summarizer: compression of folded blocks (summarizer/anthropic)
//   - Index: semantic recall of folded interactions (store/chromem)
//
// Collaborator failures never fail an AddInteraction call. A failing
// Summarizer falls back to a local summary; a failing Storage disables
// persistence for the rest of the session.
package memory
