package gemini

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/parser"
	"docextract/internal/port"
)

const (
	defaultModel  = "gemini-2.0-flash"
	defaultRegion = "us-central1"
	maxTokens     = 16384
)

// generator is the subset of *genai.GenerativeModel the parser uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Parser implements parser.Provider using Gemini on Vertex AI.
type Parser struct {
	gen    generator
	model  string
	client *genai.Client
}

// NewParser creates a Vertex AI Gemini provider. Credentials come from the ambient
// Google application default credentials.
func NewParser(ctx context.Context, cfg *config.ParserProviderConfig) (*Parser, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gemini: project id is required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	gm := client.GenerativeModel(model)
	gm.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
		MaxOutputTokens:  genai.Ptr[int32](maxTokens),
	}
	return &Parser{gen: gm, model: model, client: client}, nil
}

// NewParserWithGenerator creates a parser around an existing generator (for testing).
func NewParserWithGenerator(gen generator, model string) *Parser {
	if model == "" {
		model = defaultModel
	}
	return &Parser{gen: gen, model: model}
}

// Factory adapts NewParser to parser.ProviderFactory.
func Factory(cfg *config.ParserProviderConfig) (parser.Provider, error) {
	return NewParser(context.Background(), cfg)
}

// Close releases the underlying client.
func (p *Parser) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Parser) Classify(ctx context.Context, input port.ClassifyInput) (*port.Classification, error) {
	text, err := p.generate(ctx, parser.BuildClassificationPrompt(), parser.LimitPages(input.Pages, parser.MaxClassifyPages))
	if err != nil {
		return nil, parser.Wrap("gemini", "classify", err)
	}
	out, err := parser.ParseClassification(text, p.model)
	if err != nil {
		return nil, parser.Wrap("gemini", "classify", err)
	}
	return out, nil
}

func (p *Parser) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := parser.BuildExtractionPrompt(input.Schema, input.OCRText)
	text, err := p.generate(ctx, prompt, parser.LimitPages(input.Pages, parser.MaxExtractPages))
	if err != nil {
		return nil, parser.Wrap("gemini", "extract", err)
	}
	candidates, err := parser.ParseExtraction(text)
	if err != nil {
		return nil, parser.Wrap("gemini", "extract", err)
	}
	return &port.ExtractOutput{Candidates: candidates, Model: p.model}, nil
}

func (p *Parser) generate(ctx context.Context, prompt string, pages []domain.Page) (string, error) {
	parts := make([]genai.Part, 0, len(pages)+1)
	for _, page := range pages {
		mime, ok := toGeminiMimeType(page.ContentType)
		if !ok {
			continue
		}
		parts = append(parts, genai.Blob{MIMEType: mime, Data: page.Image})
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := p.gen.GenerateContent(ctx, parts...)
	if err != nil {
		if status.Code(err) == codes.ResourceExhausted {
			return "", parser.NewRateLimitError("gemini", err, 0)
		}
		return "", fmt.Errorf("calling gemini API: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", parser.Malformed("empty response from API: no candidates")
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return "", parser.Malformed("output truncated (finish_reason: max_tokens): response exceeded output token limit")
	}
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", parser.Malformed("empty response from API: no parts")
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func toGeminiMimeType(contentType string) (string, bool) {
	switch contentType {
	case "application/pdf", "image/jpeg", "image/png", "image/webp":
		return contentType, true
	default:
		return "", false
	}
}
