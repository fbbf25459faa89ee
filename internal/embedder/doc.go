// Package embedder generates the dense vectors used for semantic retrieval.
//
// An Embedder must be deterministic for identical input: the same text always
// produces the same vector. Two providers are available: an OpenAI-compatible
// HTTP provider for remote models, and a deterministic local provider useful
// for development and tests. Results are cached in an LRU keyed by content
// hash, and remote calls retry with exponential backoff.
package embedder
