package model

// InvestigationState is the run-scoped state threaded through the
// orchestrator's stages. Exactly one run owns an instance; the knowledge
// store only ever sees copies of what it holds.
type InvestigationState struct {
	TicketID   string `json:"ticket_id"`
	TicketText string `json:"ticket_text,omitempty"`
	Case       Case   `json:"case"`

	Vision     *VisionData        `json:"vision_data,omitempty"`
	Similarity *SimilarityContext `json:"similarity_context,omitempty"`

	ComparisonText string    `json:"text_for_embedding,omitempty"`
	Embedding      []float64 `json:"current_embedding,omitempty"`

	InitialRCA *RCAResult `json:"initial_rca,omitempty"`

	LogText     string       `json:"-"`
	LogSummary  *LogSummary  `json:"log_summary,omitempty"`
	EnhancedRCA *EnhancedRCA `json:"enhanced_rca,omitempty"`

	ConfidenceScore float64 `json:"confidence_score"`

	// StatusUpdates is the ordered, append-only progress trail of the run
	StatusUpdates []string `json:"status_updates"`
}

// FinalConfidence returns the re-analysis confidence when a log deep dive
// ran, else the initial confidence
func (s *InvestigationState) FinalConfidence() float64 {
	if s.EnhancedRCA != nil {
		return s.EnhancedRCA.ConfidenceScore
	}
	return s.ConfidenceScore
}
