package domain

// Confidence is the discrete trust label derived from the top result score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Hit is a single raw result from either index: the document plus the
// source-specific score. Vector hits carry a similarity in [0,1]; keyword
// hits carry a BM25 score normalized to [0,1] within the result page.
type Hit struct {
	ID       string
	Text     string
	Metadata Metadata
	Score    float64
}

// Candidate is the per-request merge of all hits for one document id.
// Created fresh for every query, never persisted.
type Candidate struct {
	ID           string   `json:"id"`
	Text         string   `json:"text,omitempty"`
	Metadata     Metadata `json:"metadata"`
	VectorScore  float64  `json:"vector_score"`
	KeywordScore float64  `json:"keyword_score"`
	DomainBoost  float64  `json:"domain_boost"`
	RerankScore  float64  `json:"rerank_score,omitempty"`
	Reranked     bool     `json:"reranked,omitempty"`
	FinalScore   float64  `json:"final_score"`
}

// SearchRequest is the inbound contract of the retrieval pipeline.
type SearchRequest struct {
	Query                string `json:"query"`
	TopK                 int    `json:"top_k,omitempty"`
	SkipRerank           bool   `json:"skip_rerank,omitempty"`
	IncludeLowConfidence bool   `json:"include_low_confidence,omitempty"`
}

// SearchResult is the ranked outcome of one retrieval request. An empty
// candidate list with ConfidenceNone is a valid state, not an error.
type SearchResult struct {
	Candidates      []Candidate `json:"results"`
	Confidence      Confidence  `json:"confidence"`
	RerankApplied   bool        `json:"rerank_applied"`
	ExpandedQueries []string    `json:"expanded_queries,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// Answer is the synthesized response handed back to the caller, with the
// passages it was grounded on for citation.
type Answer struct {
	Text       string      `json:"answer"`
	Sources    []Candidate `json:"sources"`
	Confidence Confidence  `json:"confidence"`
}
