package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/anamnesis/internal/model"
)

// Expected response keys per operation. Missing or mistyped keys are
// repaired with defaults so downstream rendering never hits a hole:
// booleans become false, similarity keys become 0.0, other score keys
// become 50.0 and everything else becomes "N/A". A payload that is not
// JSON at all is an error.
var rcaKeys = []string{
	"impactedService",
	"probableRootCause",
	"splunkQuerySuggestion",
	"recommendedSteps",
	"confidence",
	"confidence_score",
	"confidence_reasoning",
	"isRepeatedIssue",
	"similarTicketReference",
	"similarityScore",
	"visualEvidenceUsed",
}

var enhancedKeys = []string{
	"enhanced_root_cause",
	"enhanced_resolution",
	"log_correlation_summary",
	"enhanced_confidence_score",
	"confidence_change_reason",
	"dominant_exception",
	"impactedService",
}

var boolKeys = map[string]bool{
	"isRepeatedIssue":    true,
	"visualEvidenceUsed": true,
}

// parseRCAResult decodes and repairs the initial analysis payload
func parseRCAResult(raw string) (*model.RCAResult, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	repairFields(fields, rcaKeys)

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encode analysis response: %w", err)
	}
	var result model.RCAResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &result, nil
}

// parseEnhancedRCA decodes and repairs the re-analysis payload
func parseEnhancedRCA(raw string) (*model.EnhancedRCA, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	repairFields(fields, enhancedKeys)

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encode re-analysis response: %w", err)
	}
	var result model.EnhancedRCA
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode re-analysis response: %w", err)
	}
	return &result, nil
}

// parseVisionData decodes the screenshot extraction payload. Vision output
// needs no repair: empty strings are the natural absent value.
func parseVisionData(raw string) (*model.VisionData, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encode vision response: %w", err)
	}
	var result model.VisionData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	return &result, nil
}

// decodeObject parses a model response into a key map, tolerating markdown
// code fences around the JSON object
func decodeObject(raw string) (map[string]any, error) {
	text := extractJSON(raw)
	if text == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return fields, nil
}

// extractJSON strips everything outside the outermost braces. Models
// occasionally wrap the object in ```json fences despite instructions.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// repairFields fills missing or mistyped keys with their defaults
func repairFields(fields map[string]any, keys []string) {
	for _, key := range keys {
		value, ok := fields[key]
		if boolKeys[key] {
			if _, isBool := value.(bool); !ok || !isBool {
				fields[key] = false
			}
			continue
		}

		lower := strings.ToLower(key)
		switch {
		case strings.Contains(lower, "similarity"):
			fields[key] = coerceNumber(value, 0.0)
		case strings.Contains(lower, "score"):
			fields[key] = coerceNumber(value, 50.0)
		default:
			fields[key] = coerceString(value)
		}
	}
}

// coerceNumber accepts numbers and numeric strings, else the fallback
func coerceNumber(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// coerceString stringifies scalars and flattens lists, else returns the
// placeholder. Models sometimes emit recommendedSteps as an array.
func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return model.PlaceholderText
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		var parts []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return model.PlaceholderText
}
