package domain

// PageDocument is one page (or whole file for unpaged formats) of raw
// text as produced by a loader, before chunking.
type PageDocument struct {
	Text       string `json:"text"`
	SourceName string `json:"source_name"`
	Page       int    `json:"page"`
}

// Chunk is the unit of indexed text. A chunk always traces to exactly
// one source document and page; content never spans two source files.
type Chunk struct {
	Content       string `json:"content"`
	SourceName    string `json:"source_name"`
	Page          int    `json:"page"`
	SequenceIndex int    `json:"sequence_index"`
}

// RetrievedDocument is a chunk plus the reranker's relevance score.
// The score is a monotonic ranking signal, not guaranteed to stay in
// [0,1]. Ephemeral: built per query, discarded after the response.
type RetrievedDocument struct {
	Chunk
	RelevanceScore float64 `json:"relevance_score"`
}

// Citation identifies where cited content was found. Locator is a page
// number for document sources or a URL for web sources. The JSON field
// name "citation" is part of the response contract.
type Citation struct {
	Title   string `json:"title"`
	Locator string `json:"citation"`
}

// SearchResult is one entry of a web-search tool payload.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}
