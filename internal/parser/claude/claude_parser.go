package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/parser"
	"docextract/internal/port"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	maxTokens  = 16384
)

// Parser implements parser.Provider using the Anthropic Messages API.
type Parser struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewParser creates a Claude-based provider from a provider config.
func NewParser(cfg *config.ParserProviderConfig) *Parser {
	endpoint := apiURL
	if cfg.BaseURL != "" {
		endpoint = cfg.BaseURL
	}
	return newParser(cfg, endpoint)
}

// NewParserWithEndpoint creates a parser pointing at a custom API endpoint (for testing).
func NewParserWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Parser {
	return newParser(cfg, endpoint)
}

// Factory adapts NewParser to parser.ProviderFactory.
func Factory(cfg *config.ParserProviderConfig) (parser.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: api key is required")
	}
	return NewParser(cfg), nil
}

func newParser(cfg *config.ParserProviderConfig, endpoint string) *Parser {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Parser{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *Parser) Classify(ctx context.Context, input port.ClassifyInput) (*port.Classification, error) {
	text, err := p.send(ctx, parser.BuildClassificationPrompt(), parser.LimitPages(input.Pages, parser.MaxClassifyPages))
	if err != nil {
		return nil, parser.Wrap("claude", "classify", err)
	}
	out, err := parser.ParseClassification(text, p.model)
	if err != nil {
		return nil, parser.Wrap("claude", "classify", err)
	}
	return out, nil
}

func (p *Parser) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := parser.BuildExtractionPrompt(input.Schema, input.OCRText)
	text, err := p.send(ctx, prompt, parser.LimitPages(input.Pages, parser.MaxExtractPages))
	if err != nil {
		return nil, parser.Wrap("claude", "extract", err)
	}
	candidates, err := parser.ParseExtraction(text)
	if err != nil {
		return nil, parser.Wrap("claude", "extract", err)
	}
	return &port.ExtractOutput{Candidates: candidates, Model: p.model}, nil
}

func (p *Parser) send(ctx context.Context, prompt string, pages []domain.Page) (string, error) {
	reqBody := map[string]interface{}{
		"model":      p.model,
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": buildContentBlocks(pages, prompt),
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return "", parser.NewRateLimitError("claude", baseErr, retryAfter)
		}
		return "", baseErr
	}

	return responseText(respBody)
}

// buildContentBlocks sends images and unrasterized PDF pages inline, followed by the prompt.
func buildContentBlocks(pages []domain.Page, prompt string) []map[string]interface{} {
	var blocks []map[string]interface{}
	for _, page := range pages {
		encoded := base64.StdEncoding.EncodeToString(page.Image)
		switch {
		case page.ContentType == "application/pdf":
			blocks = append(blocks, map[string]interface{}{
				"type": "document",
				"source": map[string]interface{}{
					"type":       "base64",
					"media_type": "application/pdf",
					"data":       encoded,
				},
			})
		case parser.IsImage(page.ContentType):
			blocks = append(blocks, map[string]interface{}{
				"type": "image",
				"source": map[string]interface{}{
					"type":       "base64",
					"media_type": page.ContentType,
					"data":       encoded,
				},
			})
		}
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": prompt,
	})
	return blocks
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func responseText(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parser.Malformed("unmarshaling response: %v", err)
	}

	if len(resp.Content) == 0 {
		return "", parser.Malformed("empty response from API")
	}

	if resp.StopReason == "max_tokens" {
		return "", parser.Malformed("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}

	for _, c := range resp.Content {
		if c.Type == "text" {
			return c.Text, nil
		}
	}
	return "", parser.Malformed("no text block in response")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
