package domain

// KnowledgeCitation references the knowledge chunk that grounds part of an
// answer. Citations are transient: they live only on the answer they
// annotate and are never persisted.
type KnowledgeCitation struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet"`
	Similarity float32 `json:"similarity"`
}

// WebCitation references a web search result that grounds part of an
// answer.
type WebCitation struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Source         string  `json:"source,omitempty"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float32 `json:"relevance_score,omitempty"`
}
