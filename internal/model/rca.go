package model

// Case is the structured metadata of a support ticket
type Case struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// RCAResult is the structured output of the initial analysis. Field names
// in the JSON tags match the contract the analysis model is prompted to
// honor; missing fields are repaired at the provider boundary, so every
// consumer can rely on all of them being set.
type RCAResult struct {
	ImpactedService       string  `json:"impactedService"`
	ProbableRootCause     string  `json:"probableRootCause"`
	SplunkQuerySuggestion string  `json:"splunkQuerySuggestion"`
	RecommendedSteps      string  `json:"recommendedSteps"`
	Confidence            string  `json:"confidence"`
	ConfidenceScore       float64 `json:"confidence_score"`
	ConfidenceReasoning   string  `json:"confidence_reasoning"`
	IsRepeatedIssue       bool    `json:"isRepeatedIssue"`
	SimilarTicketRef      string  `json:"similarTicketReference"`
	SimilarityScore       float64 `json:"similarityScore"`
	VisualEvidenceUsed    bool    `json:"visualEvidenceUsed"`
}

// EnhancedRCA is the output of log-correlated re-analysis
type EnhancedRCA struct {
	RootCause              string  `json:"enhanced_root_cause"`
	Resolution             string  `json:"enhanced_resolution"`
	LogCorrelationSummary  string  `json:"log_correlation_summary"`
	ConfidenceScore        float64 `json:"enhanced_confidence_score"`
	ConfidenceChangeReason string  `json:"confidence_change_reason"`
	DominantException      string  `json:"dominant_exception"`
	ImpactedService        string  `json:"impactedService"`
}

// VisionData holds structured markers extracted from a screenshot.
// Only explicitly visible information is populated; absent fields stay empty.
type VisionData struct {
	ErrorMessage           string `json:"error_message,omitempty"`
	ErrorCode              string `json:"error_code,omitempty"`
	ServiceName            string `json:"service_name,omitempty"`
	StackTrace             string `json:"stack_trace,omitempty"`
	VisibleTimestamp       string `json:"visible_timestamp,omitempty"`
	Environment            string `json:"environment,omitempty"`
	AdditionalObservations string `json:"additional_observations,omitempty"`
}

// SimilarityContext describes the best knowledge-store match for a run
type SimilarityContext struct {
	TicketNumber string `json:"ticket_number"`
	// Score is rounded to two decimals for display and prompt injection
	Score   float64 `json:"score"`
	Content string  `json:"content"`
	// Record is a copy of the full matched entry, carried for downstream
	// reliability signals
	Record *CaseRecord `json:"full_entry,omitempty"`
}

// LogSummary is the structured result of parsing raw log text
type LogSummary struct {
	// Status is set when no clear errors were detected
	Status string `json:"status,omitempty"`

	TopException     string   `json:"top_exception,omitempty"`
	ExceptionCount   int      `json:"exception_count,omitempty"`
	TotalErrorLines  int      `json:"total_error_lines,omitempty"`
	TimeWindow       string   `json:"time_window,omitempty"`
	Services         []string `json:"detected_services,omitempty"`
	Environments     []string `json:"environments,omitempty"`
	DominantPatterns []string `json:"dominant_patterns,omitempty"`
	LineCount        int      `json:"line_count"`
}

// HasErrors reports whether the parser found error evidence worth correlating
func (s *LogSummary) HasErrors() bool {
	return s != nil && s.Status == ""
}
