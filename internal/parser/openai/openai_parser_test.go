package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/parser"
	"docextract/internal/parser/openai"
	"docextract/internal/port"
	"docextract/internal/schema"
)

func newOpenAITestParser(serverURL string) *openai.Parser {
	cfg := &config.ParserProviderConfig{
		Provider:     "openai",
		APIKey:       "test-openai-key",
		DefaultModel: "gpt-4o",
		TimeoutSecs:  30,
		BaseURL:      serverURL + "/v1",
	}
	return openai.NewParser(cfg)
}

func openaiSuccessResponse(content, finish string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": finish,
			},
		},
	}
}

func TestOpenAIParser_Extract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-openai-key", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&reqBody)
		assert.NoError(t, err)
		assert.Equal(t, "gpt-4o", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_completion_tokens"])
		assert.Equal(t, "json_object", reqBody["response_format"].(map[string]interface{})["type"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		parts := messages[0].(map[string]interface{})["content"].([]interface{})
		// text prompt plus the image page; the PDF page is skipped
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0].(map[string]interface{})["type"])
		img := parts[1].(map[string]interface{})
		assert.Equal(t, "image_url", img["type"])
		url := img["image_url"].(map[string]interface{})["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openaiSuccessResponse(`{"fields":[{"name":"total","value":"45.00","confidence":0.7}]}`, "stop"))
	}))
	defer server.Close()

	out, err := newOpenAITestParser(server.URL).Extract(context.Background(), port.ExtractInput{
		DocType: domain.DocTypeInvoice,
		Pages: []domain.Page{
			{Index: 1, Image: []byte{0x89, 0x50}, ContentType: "image/png"},
			{Index: 2, Image: []byte("%PDF-1.4"), ContentType: "application/pdf"},
		},
		Schema: schema.InvoiceSchema(),
	})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", out.Model)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "total", out.Candidates[0].Name)
}

func TestOpenAIParser_Classify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openaiSuccessResponse(`{"document_type":"invoice","confidence":0.95,"key_indicators":["Invoice No"]}`, "stop"))
	}))
	defer server.Close()

	c, err := newOpenAITestParser(server.URL).Classify(context.Background(), port.ClassifyInput{})
	require.NoError(t, err)
	assert.Equal(t, "invoice", c.Label)
	assert.Equal(t, []string{"Invoice No"}, c.Indicators)
}

func TestOpenAIParser_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	_, err := newOpenAITestParser(server.URL).Classify(context.Background(), port.ClassifyInput{})
	require.Error(t, err)

	var rlErr *parser.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "openai", rlErr.Provider)
}

func TestOpenAIParser_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openaiSuccessResponse(`{"fields":[`, "length"))
	}))
	defer server.Close()

	_, err := newOpenAITestParser(server.URL).Extract(context.Background(), port.ExtractInput{Schema: schema.InvoiceSchema()})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestOpenAIParser_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	_, err := newOpenAITestParser(server.URL).Classify(context.Background(), port.ClassifyInput{})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFactory_RequiresAPIKey(t *testing.T) {
	_, err := openai.Factory(&config.ParserProviderConfig{Provider: "openai"})
	assert.Error(t, err)
}
