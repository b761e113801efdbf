package domain

import "time"

// AggregateResult holds statistics about one aggregation run.
type AggregateResult struct {
	RunID              string          `json:"run_id"`
	SourcesProcessed   int             `json:"sources_processed"`
	TotalArticlesAdded int             `json:"total_articles_added"`
	PublishErrors      int             `json:"publish_errors"`
	Failures           []SourceFailure `json:"failures,omitempty"`
	Duration           time.Duration   `json:"duration"`
}

// SourceFailure describes why one source contributed nothing to a run.
type SourceFailure struct {
	SourceID int64  `json:"source_id"`
	Name     string `json:"name"`
	Website  string `json:"website"`
	Error    string `json:"error"`
}

// ValidationReport summarizes one validation pass over all sources.
type ValidationReport struct {
	Checked  int `json:"checked"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Failed   int `json:"failed"`
}
