package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/profixion/internal/domain/ai"
	"github.com/bryanwahyu/profixion/internal/domain/audits"
	"github.com/bryanwahyu/profixion/internal/infra/ai/prompt"
)

const (
	maxTokens    = 2048
	defaultModel = "gpt-4o-mini"
)

// Client talks to any OpenAI-compatible chat completion endpoint. Point
// BaseURL at another provider's compatibility layer to swap models.
type Client struct {
	api   *openai.Client
	Model string
}

func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{api: openai.NewClientWithConfig(cfg), Model: model}
}

// Analyze asks the model for a structured audit of profile. Only the JSON
// schema response format is used; free text is never parsed.
func (c *Client) Analyze(ctx context.Context, profile json.RawMessage) (audits.AnalysisResult, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   prompt.SchemaName,
				Schema: prompt.Schema(),
				Strict: true,
			},
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(profile)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if quotaExceeded(err) {
			return audits.AnalysisResult{}, fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return audits.AnalysisResult{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return audits.AnalysisResult{}, ai.ErrEmptyResponse
	}

	var out audits.AnalysisResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return audits.AnalysisResult{}, fmt.Errorf("decode structured analysis: %w", err)
	}
	return out, nil
}

func quotaExceeded(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota"
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
