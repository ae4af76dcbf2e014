package domain

// Chunk is the atomic unit of embedding and retrieval: a bounded
// substring of a document with its embedding vector.
//
// Seq is 1-based and dense per document; ordering by Seq reconstructs the
// original document order. The chunk set of a document is only ever
// replaced wholesale, never patched.
type Chunk struct {
	ID            string
	DocumentID    string
	Seq           int
	Text          string
	Embedding     []float32
	TokenEstimate int
}

// ScoredChunk is a Chunk annotated with its similarity to a query and the
// title of the document it belongs to.
type ScoredChunk struct {
	Chunk
	DocumentTitle string
	Similarity    float32
}
