// Package types provides shared type definitions for the Aiye retrieval
// backend.
//
// This package defines the domain records used across the pipeline:
// documents, chunks, search results, cache entries, and the persisted
// index metadata envelope.
//
// # Core Types
//
// Chunk is the atomic retrieval unit, produced once at ingestion and never
// mutated afterwards:
//
//	chunk := types.Chunk{
//	    DocumentID: docID,
//	    Content:    "O Orixá Exu é o guardião das encruzilhadas.",
//	    PageStart:  3,
//	    PageEnd:    3,
//	}
//
// SearchResult is the ephemeral per-query record flowing through the dense,
// hybrid, and re-ranking stages. Optional provenance fields record which
// stage produced or boosted a result:
//
//	result.MatchedQuery // expanded query variant that retrieved it
//	result.BM25Boosted  // appeared in the sparse top-5
//	result.FinalScore   // composite re-ranker score
//
// # Validation
//
// Chunk implements a Validate method enforcing its page-range invariant:
//
//	if err := chunk.Validate(); err != nil {
//	    log.Fatal().Err(err).Msg("bad chunk")
//	}
//
// # Index Metadata
//
// IndexMetadata mirrors the on-disk metadata.json layout. Its Chunks slice
// must stay positionally aligned with the vector index at all times: the
// embedding at index position i belongs to Chunks[i].
package types
