// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the agent as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/tools"
)

// Tool names published by the server.
const (
	ToolProcessTurn = "process_turn"
	ToolListTools   = "list_tools"
	ToolStats       = "stats"
)

// Agent is the part of the orchestrator the server publishes.
type Agent interface {
	ProcessTurn(ctx context.Context, text string) string
	ListTools() []tools.Descriptor
	Stats(ctx context.Context) agent.Stats
}

// Server wraps the mcp-go server around an Agent.
type Server struct {
	mcpServer *server.MCPServer
	agent     Agent
}

// NewServer creates a server named name that forwards calls to a.
func NewServer(name, version string, a Agent) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		agent:     a,
	}
	s.mcpServer.AddTool(mcp.NewTool(ToolProcessTurn,
		mcp.WithDescription("Send a message to the agent and return its reply."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user message.")),
	), s.processTurn)
	s.mcpServer.AddTool(mcp.NewTool(ToolListTools,
		mcp.WithDescription("List the tools the agent can use."),
	), s.listTools)
	s.mcpServer.AddTool(mcp.NewTool(ToolStats,
		mcp.WithDescription("Report session, memory and tool statistics."),
	), s.stats)
	return s
}

func (s *Server) processTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := strings.TrimSpace(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	return mcp.NewToolResultText(s.agent.ProcessTurn(ctx, text)), nil
}

func (s *Server) listTools(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.agent.ListTools())
}

func (s *Server) stats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.agent.Stats(ctx))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio serves requests on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
