// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the chat interface the agent uses to reach a
// language model, plus Ollama, OpenAI-compatible and mock backends.
package llm

import (
	"context"
	"strings"

	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single unit of communication.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest encapsulates the input for the LLM. Zero sampling values
// leave the backend defaults in place.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse encapsulates the output from the LLM.
type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for interacting with LLM backends.
type Provider interface {
	// Chat sends a chat request to the LLM and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// FromConfig builds the provider selected by cfg.Provider.
func FromConfig(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllama(cfg.BaseURL, WithHTTPTimeout(cfg.Timeout)), nil
	case "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey), nil
	case "mock":
		return &MockProvider{Response: "This is a mock response."}, nil
	default:
		return nil, errors.Newf(errors.CodeConfiguration, "unknown llm provider %q", cfg.Provider)
	}
}

// RequestFromConfig returns a ChatRequest carrying the model and sampling
// settings of cfg.
func RequestFromConfig(cfg config.LLMConfig, messages []Message) ChatRequest {
	return ChatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}
}
