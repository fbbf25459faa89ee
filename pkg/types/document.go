package types

// Document represents one ingested source document. A document owns zero or
// more chunks; chunks hold a back-reference by DocumentID.
type Document struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	SourceURI  string `json:"source_uri"`
	Pages      int    `json:"pages"`
}

// IndexMetadata is the JSON envelope persisted alongside the binary vector
// index. Chunks must stay positionally aligned with the index: the vector at
// position i corresponds to Chunks[i].
type IndexMetadata struct {
	Documents []Document `json:"documents"`
	Chunks    []Chunk    `json:"chunks"`
}

// DocumentByID builds a lookup map from document id to document.
func (m *IndexMetadata) DocumentByID() map[string]Document {
	docs := make(map[string]Document, len(m.Documents))
	for _, d := range m.Documents {
		docs[d.DocumentID] = d
	}
	return docs
}
