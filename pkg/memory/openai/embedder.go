// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai embeds text through any OpenAI-compatible embeddings API.
package openai

import (
	"context"
	stderrors "errors"
	"net/http"

	oa "github.com/sashabaranov/go-openai"

	"github.com/jllopis/autoagent/pkg/errors"
)

// placeholderKey lets keyless local servers (LocalAI, vLLM) accept requests.
const placeholderKey = "sk-xxx"

// Embedder implements memory.Embedder with go-openai.
type Embedder struct {
	client *oa.Client
	model  string
}

// NewEmbedder creates an Embedder for model. An empty baseURL targets the
// public OpenAI endpoint.
func NewEmbedder(baseURL, apiKey, model string) *Embedder {
	if apiKey == "" {
		apiKey = placeholderKey
	}
	cfg := oa.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Embedder{client: oa.NewClientWithConfig(cfg), model: model}
}

// Embed converts text into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, oa.EmbeddingRequestStrings{
		Input: []string{text},
		Model: oa.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, errors.New(errors.CodeBackendUnavailable, "create embeddings", err).
			WithContext("model", e.model).
			WithRecoverable(Retryable(err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.Newf(errors.CodeBackendUnavailable, "no embedding returned for model %s", e.model)
	}
	return resp.Data[0].Embedding, nil
}

// Retryable reports whether an error from go-openai is worth retrying:
// rate limits, server errors and transport failures are; other API
// rejections are not.
func Retryable(err error) bool {
	var apiErr *oa.APIError
	if stderrors.As(err, &apiErr) {
		return statusRetryable(apiErr.HTTPStatusCode)
	}
	var reqErr *oa.RequestError
	if stderrors.As(err, &reqErr) {
		return statusRetryable(reqErr.HTTPStatusCode)
	}
	return !stderrors.Is(err, context.Canceled)
}

func statusRetryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
