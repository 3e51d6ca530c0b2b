// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jllopis/autoagent/pkg/errors"
)

// OpenAIProvider talks to any server exposing the OpenAI chat completions
// API, such as llama.cpp, LocalAI or vLLM.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAI creates a provider for baseURL. An empty baseURL targets the
// public OpenAI endpoint; an empty key is replaced with a placeholder that
// keyless local servers accept.
func NewOpenAI(baseURL, apiKey string) *OpenAIProvider {
	if apiKey == "" {
		apiKey = "sk-xxx"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, errors.New(errors.CodeBackendUnavailable, "chat completion failed", err).
			WithContext("model", req.Model).
			WithRecoverable(retryableOpenAI(ctx, err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Newf(errors.CodeBackendUnavailable, "chat completion returned no choices")
	}

	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func retryableOpenAI(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
