package model

// Reliability score bounds and feedback adjustments. A record can never be
// trusted less than the floor or more than fully.
const (
	ReliabilityFloor   = 0.3
	ReliabilityCeiling = 1.0
	ReliabilityDefault = 0.7

	ReliabilityCorrectDelta   = 0.05
	ReliabilityIncorrectDelta = 0.20
)

// PlaceholderText marks AI fields that have not been produced yet
// (e.g. records created by historical backfill before any analysis ran).
const PlaceholderText = "N/A"

// FeedbackKind classifies an analyst's verdict on an AI-generated RCA
type FeedbackKind string

const (
	FeedbackCorrect   FeedbackKind = "correct"
	FeedbackIncorrect FeedbackKind = "incorrect"
	FeedbackEdited    FeedbackKind = "edited"
)

// Valid reports whether the kind is one of the three known verdicts
func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackEdited:
		return true
	}
	return false
}

// CaseRecord is one entry in the knowledge store, keyed by case number.
// Created on first analysis (self-registration) or by historical backfill,
// mutated only through feedback, never deleted.
type CaseRecord struct {
	CaseNumber string    `json:"case_number"`
	Text       string    `json:"text"`
	Embedding  []float64 `json:"embedding,omitempty"`

	AIRootCause  string `json:"ai_root_cause"`
	AIResolution string `json:"ai_resolution"`

	// Analyst corrections are authoritative over the AI fields wherever
	// both are present
	AnalystRootCause  *string `json:"analyst_root_cause"`
	AnalystResolution *string `json:"analyst_resolution"`

	Verified         bool    `json:"verified"`
	ReliabilityScore float64 `json:"reliability_score"`
	FeedbackCount    int     `json:"feedback_count"`
	LastFeedbackAt   string  `json:"last_feedback_at,omitempty"`

	// Pre-migration field names. Populated only when decoding a legacy
	// snapshot; cleared by migration.
	LegacyRootCause  string `json:"root_cause,omitempty"`
	LegacyResolution string `json:"resolution,omitempty"`
}

// BestRootCause returns the analyst correction when present, else the AI output
func (r *CaseRecord) BestRootCause() string {
	if r.AnalystRootCause != nil && *r.AnalystRootCause != "" {
		return *r.AnalystRootCause
	}
	return r.AIRootCause
}

// BestResolution returns the analyst correction when present, else the AI output
func (r *CaseRecord) BestResolution() string {
	if r.AnalystResolution != nil && *r.AnalystResolution != "" {
		return *r.AnalystResolution
	}
	return r.AIResolution
}

// Clone returns a deep copy so callers never hold a live reference into
// the store
func (r *CaseRecord) Clone() CaseRecord {
	out := *r
	if r.Embedding != nil {
		out.Embedding = append([]float64(nil), r.Embedding...)
	}
	if r.AnalystRootCause != nil {
		v := *r.AnalystRootCause
		out.AnalystRootCause = &v
	}
	if r.AnalystResolution != nil {
		v := *r.AnalystResolution
		out.AnalystResolution = &v
	}
	return out
}

// AISnapshot is the AI output captured at feedback-submission time
type AISnapshot struct {
	RootCause  string `json:"root_cause"`
	Resolution string `json:"resolution"`
}

// AnalystCorrection is a human-supplied override of the AI output
type AnalystCorrection struct {
	RootCause  string `json:"root_cause"`
	Resolution string `json:"resolution"`
}

// FeedbackRecord is one immutable entry in the audit trail. Written once
// per submission, never updated or deleted.
type FeedbackRecord struct {
	CaseNumber        string       `json:"case_number"`
	Timestamp         string       `json:"timestamp"`
	Kind              FeedbackKind `json:"feedback_type"`
	AIRootCause       string       `json:"ai_root_cause"`
	AIResolution      string       `json:"ai_resolution"`
	AnalystRootCause  *string      `json:"analyst_root_cause"`
	AnalystResolution *string      `json:"analyst_resolution"`
	ConfidenceAtTime  *float64     `json:"confidence_score_at_time"`
}

// MemoryStats summarizes the knowledge store
type MemoryStats struct {
	Count          int     `json:"entry_count"`
	VerifiedCount  int     `json:"verified_count"`
	AvgReliability float64 `json:"avg_reliability"`
}
