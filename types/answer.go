package types

// SourceRef identifies a retrieved chunk that supported an answer.
type SourceRef struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score"`
}

// AnswerResult is the outcome of a single answered question. Transient,
// per-request.
type AnswerResult struct {
	Text    string      `json:"text"`
	Backend string      `json:"backend"`
	Sources []SourceRef `json:"sources,omitempty"`
}
