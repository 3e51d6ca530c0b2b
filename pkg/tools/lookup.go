// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
	"github.com/tmc/langchaingo/tools/wikipedia"
)

const (
	WebSearchToolName = "web_search"
	WikipediaToolName = "wikipedia"

	noSearchResults   = "No search results found"
	noWikipediaPage   = "No Wikipedia page found for this query"
	defaultSummaryLen = 1000
)

// Searcher is a text-in, text-out lookup backend. The langchaingo
// duckduckgo and wikipedia tools satisfy it.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// NewDuckDuckGo returns a web search backend.
func NewDuckDuckGo(maxResults int, userAgent string) (Searcher, error) {
	ddg, err := duckduckgo.New(maxResults, userAgent)
	if err != nil {
		return nil, err
	}
	return ddg, nil
}

// NewWikipedia returns a Wikipedia backend.
func NewWikipedia(userAgent string) Searcher {
	w := wikipedia.New(userAgent)
	return &w
}

// LookupTool answers a query from an external backend. Backend failures
// are reported as text, never as errors.
type LookupTool struct {
	desc     Descriptor
	backend  Searcher
	maxLen   int
	notFound string
	logger   *slog.Logger
}

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool(backend Searcher) *LookupTool {
	return &LookupTool{
		desc: Descriptor{
			Name:        WebSearchToolName,
			Description: "Search the web for current information",
			Capability:  CapabilitySafe,
		},
		backend:  backend,
		notFound: noSearchResults,
		logger:   slog.Default(),
	}
}

// NewWikipediaTool creates the wikipedia tool returning at most
// summaryLength characters.
func NewWikipediaTool(backend Searcher, summaryLength int) *LookupTool {
	if summaryLength <= 0 {
		summaryLength = defaultSummaryLen
	}
	return &LookupTool{
		desc: Descriptor{
			Name:        WikipediaToolName,
			Description: "Look up a topic on Wikipedia",
			Capability:  CapabilitySafe,
		},
		backend:  backend,
		maxLen:   summaryLength,
		notFound: noWikipediaPage,
		logger:   slog.Default(),
	}
}

func (t *LookupTool) Descriptor() Descriptor { return t.desc }

func (t *LookupTool) Validate(string) error { return nil }

func (t *LookupTool) Invoke(ctx context.Context, input string) (Result, error) {
	if t.backend == nil {
		return Result{Output: fmt.Sprintf("%s is not available", Phrase(t.desc.Name))}, nil
	}
	query := Argument(input, t.desc.Name)
	out, err := t.backend.Call(ctx, query)
	if err != nil {
		t.logger.Warn("lookup backend failed",
			slog.String("tool", t.desc.Name),
			slog.String("error", err.Error()),
		)
		return Result{Output: t.notFound}, nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return Result{Output: t.notFound}, nil
	}
	return Result{Output: truncateRunes(out, t.maxLen)}, nil
}
