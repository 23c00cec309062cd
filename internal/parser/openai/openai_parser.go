package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/parser"
	"docextract/internal/port"
)

const (
	defaultModel = "gpt-4o"
	maxTokens    = 16384
)

// Parser implements parser.Provider using the OpenAI Chat Completions API.
type Parser struct {
	client *goopenai.Client
	model  string
}

// NewParser creates an OpenAI-based provider from a provider config. BaseURL, when set,
// points the client at a compatible endpoint.
func NewParser(cfg *config.ParserProviderConfig) *Parser {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	return &Parser{client: goopenai.NewClientWithConfig(oc), model: model}
}

// Factory adapts NewParser to parser.ProviderFactory.
func Factory(cfg *config.ParserProviderConfig) (parser.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	return NewParser(cfg), nil
}

func (p *Parser) Classify(ctx context.Context, input port.ClassifyInput) (*port.Classification, error) {
	text, err := p.complete(ctx, parser.BuildClassificationPrompt(), parser.LimitPages(input.Pages, parser.MaxClassifyPages))
	if err != nil {
		return nil, parser.Wrap("openai", "classify", err)
	}
	out, err := parser.ParseClassification(text, p.model)
	if err != nil {
		return nil, parser.Wrap("openai", "classify", err)
	}
	return out, nil
}

func (p *Parser) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := parser.BuildExtractionPrompt(input.Schema, input.OCRText)
	text, err := p.complete(ctx, prompt, parser.LimitPages(input.Pages, parser.MaxExtractPages))
	if err != nil {
		return nil, parser.Wrap("openai", "extract", err)
	}
	candidates, err := parser.ParseExtraction(text)
	if err != nil {
		return nil, parser.Wrap("openai", "extract", err)
	}
	return &port.ExtractOutput{Candidates: candidates, Model: p.model}, nil
}

func (p *Parser) complete(ctx context.Context, prompt string, pages []domain.Page) (string, error) {
	parts := []goopenai.ChatMessagePart{{Type: goopenai.ChatMessagePartTypeText, Text: prompt}}
	for _, page := range pages {
		// PDF pages that could not be rasterized rely on the OCR text.
		if !parser.IsImage(page.ContentType) {
			continue
		}
		dataURI := fmt.Sprintf("data:%s;base64,%s", page.ContentType, base64.StdEncoding.EncodeToString(page.Image))
		parts = append(parts, goopenai.ChatMessagePart{
			Type:     goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{URL: dataURI, Detail: goopenai.ImageURLDetailHigh},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:               p.model,
		MaxCompletionTokens: maxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", parser.Malformed("empty response from API: no choices")
	}
	if resp.Choices[0].FinishReason == goopenai.FinishReasonLength {
		return "", parser.Malformed("output truncated (finish_reason: length): response exceeded output token limit")
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return parser.NewRateLimitError("openai", err, 0)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return parser.NewRateLimitError("openai", err, 0)
	}
	return fmt.Errorf("calling openai API: %w", err)
}
