package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/util"
)

// OllamaProvider implements the Provider interface for Ollama local models
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Ollama API structures
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	System string `json:"system,omitempty"`
	// Format "json" constrains the model to emit a JSON object
	Format  string        `json:"format,omitempty"`
	Images  []string      `json:"images,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second // Local models can be slow
	}

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks if the provider is properly configured
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/tags", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (request creation): %v\n", err)
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (connection to %s): %v\n", p.baseURL, err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (HTTP %d from %s)\n", resp.StatusCode, p.baseURL)
		return false
	}

	return true
}

// Embed generates an embedding via the embeddings endpoint
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if p.config.EmbeddingModel == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., nomic-embed-text)")
	}

	body, err := json.Marshal(ollamaEmbeddingRequest{
		Model:  p.config.EmbeddingModel,
		Prompt: strings.ReplaceAll(text, "\n", " "),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := p.post(ctx, "/api/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding error: %w", err)
	}

	var resp ollamaEmbeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding, nil
}

// Analyze produces the initial structured RCA
func (p *OllamaProvider) Analyze(ctx context.Context, req AnalyzeRequest) (*model.RCAResult, error) {
	raw, err := p.generateJSON(ctx, analysisSystemPrompt, buildAnalysisContent(req), nil)
	if err != nil {
		return nil, fmt.Errorf("ollama analysis error: %w", err)
	}
	return parseRCAResult(raw)
}

// Reanalyze refines an RCA against log evidence
func (p *OllamaProvider) Reanalyze(ctx context.Context, req ReanalyzeRequest) (*model.EnhancedRCA, error) {
	raw, err := p.generateJSON(ctx, reanalysisSystemPrompt, buildReanalysisContent(req), nil)
	if err != nil {
		return nil, fmt.Errorf("ollama re-analysis error: %w", err)
	}
	return parseEnhancedRCA(raw)
}

// VisionExtract reads technical markers from a screenshot using a
// multimodal model. Failures return (nil, nil); visual evidence is optional.
func (p *OllamaProvider) VisionExtract(ctx context.Context, imageBase64, _ string) (*model.VisionData, error) {
	raw, err := p.generateJSON(ctx, visionPrompt,
		"Extract the technical details from this screenshot.", []string{imageBase64})
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision extraction failed: %v\n", err)
		return nil, nil
	}

	data, err := parseVisionData(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision extraction unparseable: %v\n", err)
		return nil, nil
	}
	return data, nil
}

// generateJSON runs one JSON-constrained generation and returns the raw text
func (p *OllamaProvider) generateJSON(ctx context.Context, system, prompt string, images []string) (string, error) {
	if p.config.Model == "" {
		return "", fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b)")
	}

	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.config.Model,
		Prompt: prompt,
		Stream: false,
		System: system,
		Format: "json",
		Images: images,
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := p.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return strings.TrimSpace(resp.Response), nil
}

// post sends one JSON request to the Ollama API and returns the raw body
func (p *OllamaProvider) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}
	return respBody, nil
}
