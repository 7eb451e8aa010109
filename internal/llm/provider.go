// Package llm wraps the AI services the investigation pipeline consumes:
// text embedding, structured RCA analysis, log-correlated re-analysis and
// screenshot extraction. Incomplete model output is repaired once at this
// boundary so consumers never see a missing field.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/anamnesis/internal/model"
)

// Provider defines the interface for AI providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Embed generates an embedding vector for the given text. Vector
	// dimensionality is fixed per embedding model and must stay constant
	// across everything stored in one knowledge store.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Analyze produces the initial structured RCA for a ticket
	Analyze(ctx context.Context, req AnalyzeRequest) (*model.RCAResult, error)

	// Reanalyze refines an existing RCA against parsed log evidence
	Reanalyze(ctx context.Context, req ReanalyzeRequest) (*model.EnhancedRCA, error)

	// VisionExtract pulls structured technical markers out of a
	// screenshot. A nil result with nil error means extraction was
	// attempted and yielded nothing usable; visual evidence is optional.
	VisionExtract(ctx context.Context, imageBase64, contentType string) (*model.VisionData, error)

	// IsAvailable checks if the provider is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// AnalyzeRequest carries everything the initial analysis can draw on
type AnalyzeRequest struct {
	// TicketText is the combined subject/description/comments block
	TicketText string

	// Similarity is the best historical match, nil when none cleared the
	// threshold
	Similarity *model.SimilarityContext

	// Vision holds screenshot extraction results, nil when absent
	Vision *model.VisionData
}

// ReanalyzeRequest carries the inputs for the log deep dive
type ReanalyzeRequest struct {
	TicketText     string
	Initial        *model.RCAResult
	LogSummaryText string
	Similarity     *model.SimilarityContext
	Vision         *model.VisionData
}

// Config holds AI provider configuration
type Config struct {
	// Provider name: "openai", "ollama", "mock"
	Provider string

	// Model used for analysis and vision
	Model string

	// EmbeddingModel used for vector generation
	EmbeddingModel string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "openai",
		Model:          "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		Timeout:        60,
		MaxTokens:      1500,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:       mc.Provider,
		Model:          mc.Model,
		EmbeddingModel: mc.EmbeddingModel,
		APIKey:         mc.APIKey,
		BaseURL:        mc.BaseURL,
		Timeout:        mc.Timeout,
		MaxTokens:      mc.MaxTokens,
		HTTPProxy:      mc.HTTPProxy,
		HTTPSProxy:     mc.HTTPSProxy,
		NoProxy:        mc.NoProxy,
	}
}

const analysisSystemPrompt = `You are a Senior Production Support Engineer with expertise in troubleshooting complex enterprise systems. Analyze the provided case description, comments and screenshot data to determine the root cause. Restrict hallucinations and base the analysis only on the provided facts.

### INTELLIGENCE SOURCES:
1. Analyst Corrections: when the historical context is analyst-corrected, treat that explanation as the gold-standard truth.
2. Verified Matches: a verified historical match carries more weight than unverified prior analysis.
3. Visual Evidence: screenshot data confirms technical errors (error codes, stack traces).

You MUST return the output as a STRICT JSON object with the following keys:
- impactedService: the affected service or component.
- probableRootCause: a concise explanation of the root cause.
- splunkQuerySuggestion: a relevant Splunk query to investigate further.
- recommendedSteps: concrete steps to resolve or mitigate the issue.
- confidence: "Low", "Medium" or "High".
- confidence_score: number from 0 to 100.
- confidence_reasoning: explanation referencing the similarity match, the reliability of truth sources and visual evidence.
- isRepeatedIssue: boolean, true when this ticket matches the provided historical ticket.
- similarTicketReference: the case number of the matching historical ticket, if any.
- similarityScore: the provided similarity score if applicable.
- visualEvidenceUsed: boolean, true when screenshot insights contributed to the RCA.

Do NOT include any commentary before or after the JSON object.`

const reanalysisSystemPrompt = `You are a Senior Production Support Engineer performing a deep dive. An initial RCA exists and real log evidence has now been provided. Produce an ENHANCED RCA that correlates the logs with the ticket description, screenshots and historical memory.

### RE-ANALYSIS RULES:
1. Confirm or contradict: when logs confirm the initially suspected service, raise confidence; when they contradict it, pivot the RCA.
2. Precision: use specific log details (exception names, timestamps, error counts) to refine the root cause.
3. Recalibrate enhanced_confidence_score: logs confirming the memory match add about 10, confirming visual evidence adds about 5, contradicting memory subtracts about 10, exceptions unrelated to the ticket context subtract about 15.

You MUST return the output as a STRICT JSON object with these keys:
- enhanced_root_cause: refined explanation using the log evidence.
- enhanced_resolution: specific mitigation steps based on the log findings.
- log_correlation_summary: how the logs matched or contradicted the initial findings.
- enhanced_confidence_score: number from 0 to 100.
- confidence_change_reason: explanation of the score movement.
- dominant_exception: the main error found in the logs.
- impactedService: the final confirmed service.

Do NOT include any commentary outside the JSON object.`

const visionPrompt = `You are a technical support engineer. Extract structured details from this screenshot. Return a JSON object with these keys: error_message, error_code, service_name, stack_trace, visible_timestamp, environment, additional_observations. Only include information that is EXPLICITLY visible. Leave a field empty when it is not found.`

// buildAnalysisContent renders the user message for the initial analysis,
// surfacing the reliability signals the system prompt tells the model to
// weigh.
func buildAnalysisContent(req AnalyzeRequest) string {
	similarityScore := 0.0
	verified := false
	reliability := model.ReliabilityDefault
	analystCorrected := false
	if req.Similarity != nil {
		similarityScore = req.Similarity.Score
		if rec := req.Similarity.Record; rec != nil {
			verified = rec.Verified
			reliability = rec.ReliabilityScore
			analystCorrected = rec.AnalystRootCause != nil
		}
	}

	content := fmt.Sprintf("CURRENT TICKET FOR ANALYSIS:\n\n%s\n\n", req.TicketText)
	content += "INTELLIGENCE SIGNALS:\n"
	content += fmt.Sprintf("- Semantic Similarity Match: %v\n", similarityScore)
	content += fmt.Sprintf("- Visual Evidence Found: %v\n", req.Vision != nil)
	content += fmt.Sprintf("- Historical Match Verified: %v\n", verified)
	content += fmt.Sprintf("- Historical Memory Reliability: %v\n", reliability)
	content += fmt.Sprintf("- Historical is Analyst Corrected: %v\n", analystCorrected)

	if req.Vision != nil {
		if data, err := json.Marshal(req.Vision); err == nil {
			content += fmt.Sprintf("- Visual Extraction: %s\n", data)
		}
	}
	content += "\n"

	if req.Similarity != nil {
		content += fmt.Sprintf("HISTORICAL MATCH (case %s):\n%s\n",
			req.Similarity.TicketNumber, req.Similarity.Content)
		if rec := req.Similarity.Record; rec != nil {
			content += fmt.Sprintf("Known Root Cause: %s\nKnown Resolution: %s\n",
				rec.BestRootCause(), rec.BestResolution())
		}
	}

	return content
}

// buildReanalysisContent renders the user message for the log deep dive
func buildReanalysisContent(req ReanalyzeRequest) string {
	initial, _ := json.Marshal(req.Initial)

	content := "--- CONTEXT ---\n"
	content += fmt.Sprintf("TICKET DATA: %s\n", req.TicketText)
	content += fmt.Sprintf("INITIAL RCA: %s\n", initial)
	content += fmt.Sprintf("LOG EVIDENCE SUMMARY: %s\n", req.LogSummaryText)

	if req.Vision != nil {
		if data, err := json.Marshal(req.Vision); err == nil {
			content += fmt.Sprintf("VISION FINDINGS: %s\n", data)
		}
	}
	if req.Similarity != nil {
		verified := false
		if req.Similarity.Record != nil {
			verified = req.Similarity.Record.Verified
		}
		content += fmt.Sprintf("HISTORICAL MATCH: %s (Verified: %v)\n",
			req.Similarity.TicketNumber, verified)
	}

	return content
}
