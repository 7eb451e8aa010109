package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/util"
)

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPProxy != "" || config.HTTPSProxy != "" {
		clientConfig.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		}
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Lightweight API call; surfaces bad keys early
	_, err := p.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenAI API check failed: %v\n", err)
		return false
	}
	return true
}

// Embed generates an embedding vector via the embeddings API. Newlines are
// flattened to spaces so text formatting does not perturb the vector.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.ReplaceAll(text, "\n", " ")

	ctxWithTimeout, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embeddingModel()),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embedding error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	vector := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Analyze produces the initial structured RCA via a JSON-mode chat completion
func (p *OpenAIProvider) Analyze(ctx context.Context, req AnalyzeRequest) (*model.RCAResult, error) {
	raw, err := p.chatJSON(ctx, analysisSystemPrompt, []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: buildAnalysisContent(req)},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI analysis error: %w", err)
	}
	return parseRCAResult(raw)
}

// Reanalyze refines an RCA against log evidence
func (p *OpenAIProvider) Reanalyze(ctx context.Context, req ReanalyzeRequest) (*model.EnhancedRCA, error) {
	raw, err := p.chatJSON(ctx, reanalysisSystemPrompt, []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: buildReanalysisContent(req)},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI re-analysis error: %w", err)
	}
	return parseEnhancedRCA(raw)
}

// VisionExtract reads technical markers from a screenshot. Failures return
// (nil, nil): a broken screenshot never sinks an investigation.
func (p *OpenAIProvider) VisionExtract(ctx context.Context, imageBase64, contentType string) (*model.VisionData, error) {
	raw, err := p.chatJSON(ctx, visionPrompt, []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: "Extract the technical details from this screenshot."},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", contentType, imageBase64),
			},
		},
	})
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

// chatJSON runs one JSON-mode chat completion and returns the raw content
func (p *OpenAIProvider) chatJSON(ctx context.Context, system string, parts []openai.ChatMessagePart) (string, error) {
	ctxWithTimeout, cancel := p.withTimeout(ctx)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: p.chatModel(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens:   p.maxTokens(),
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) chatModel() string {
	if p.config.Model != "" {
		return p.config.Model
	}
	return openai.GPT4o
}

func (p *OpenAIProvider) embeddingModel() string {
	if p.config.EmbeddingModel != "" {
		return p.config.EmbeddingModel
	}
	return string(openai.SmallEmbedding3)
}

func (p *OpenAIProvider) maxTokens() int {
	if p.config.MaxTokens > 0 {
		return p.config.MaxTokens
	}
	return 1500
}

func (p *OpenAIProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
