package llm

import (
	"strings"
	"testing"
)

func TestParseRCAResult_CompletePayload(t *testing.T) {
	raw := `{
		"impactedService": "AuthService",
		"probableRootCause": "Expired signing certificate",
		"splunkQuerySuggestion": "index=prod service=auth",
		"recommendedSteps": "Rotate the certificate",
		"confidence": "High",
		"confidence_score": 92,
		"confidence_reasoning": "Verified historical match",
		"isRepeatedIssue": true,
		"similarTicketReference": "00001006",
		"similarityScore": 0.87,
		"visualEvidenceUsed": false
	}`

	result, err := parseRCAResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ImpactedService != "AuthService" {
		t.Errorf("impacted service = %q", result.ImpactedService)
	}
	if result.ConfidenceScore != 92 {
		t.Errorf("confidence score = %v", result.ConfidenceScore)
	}
	if !result.IsRepeatedIssue {
		t.Error("expected repeated issue true")
	}
	if result.SimilarityScore != 0.87 {
		t.Errorf("similarity score = %v", result.SimilarityScore)
	}
}

func TestParseRCAResult_RepairsMissingKeys(t *testing.T) {
	result, err := parseRCAResult(`{"probableRootCause": "Pool exhaustion"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ProbableRootCause != "Pool exhaustion" {
		t.Errorf("root cause = %q", result.ProbableRootCause)
	}
	if result.ImpactedService != "N/A" {
		t.Errorf("missing string should default to N/A, got %q", result.ImpactedService)
	}
	if result.ConfidenceScore != 50.0 {
		t.Errorf("missing score should default to 50, got %v", result.ConfidenceScore)
	}
	if result.SimilarityScore != 0.0 {
		t.Errorf("missing similarity should default to 0, got %v", result.SimilarityScore)
	}
	if result.IsRepeatedIssue || result.VisualEvidenceUsed {
		t.Error("missing booleans should default to false")
	}
}

func TestParseRCAResult_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "{broken"} {
		if _, err := parseRCAResult(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestParseRCAResult_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"impactedService\": \"Kafka\", \"confidence_score\": 60}\n```"
	result, err := parseRCAResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ImpactedService != "Kafka" {
		t.Errorf("impacted service = %q", result.ImpactedService)
	}
	if result.ConfidenceScore != 60 {
		t.Errorf("confidence score = %v", result.ConfidenceScore)
	}
}

func TestParseRCAResult_CoercesTypes(t *testing.T) {
	raw := `{
		"confidence_score": "88",
		"recommendedSteps": ["Restart the service", "Check pool metrics"],
		"isRepeatedIssue": "yes"
	}`
	result, err := parseRCAResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ConfidenceScore != 88 {
		t.Errorf("numeric string should coerce, got %v", result.ConfidenceScore)
	}
	if !strings.Contains(result.RecommendedSteps, "Restart the service") {
		t.Errorf("list should flatten, got %q", result.RecommendedSteps)
	}
	if result.IsRepeatedIssue {
		t.Error("non-boolean should repair to false")
	}
}

func TestParseEnhancedRCA_RepairsMissingKeys(t *testing.T) {
	result, err := parseEnhancedRCA(`{"enhanced_root_cause": "GC pauses"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RootCause != "GC pauses" {
		t.Errorf("root cause = %q", result.RootCause)
	}
	if result.ConfidenceScore != 50.0 {
		t.Errorf("missing score should default to 50, got %v", result.ConfidenceScore)
	}
	if result.DominantException != "N/A" {
		t.Errorf("missing string should default to N/A, got %q", result.DominantException)
	}
}

func TestParseVisionData(t *testing.T) {
	data, err := parseVisionData(`{"error_message": "504 Gateway Timeout", "error_code": "504"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.ErrorMessage != "504 Gateway Timeout" {
		t.Errorf("error message = %q", data.ErrorMessage)
	}
	if data.StackTrace != "" {
		t.Errorf("absent vision field should stay empty, got %q", data.StackTrace)
	}

	if _, err := parseVisionData("no braces here"); err == nil {
		t.Error("expected error for non-JSON vision payload")
	}
}
