// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates agent configuration using koanf.
//
// Sources are layered: built-in defaults, a YAML (or JSON) file, an optional
// profile file next to it (config.<profile>.yaml), AUTOAGENT_ environment
// variables and finally explicit key=value overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/autoagent/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, named
// AUTOAGENT_<SECTION>_<KEY>: AUTOAGENT_SECURITY_EXEC_TIMEOUT_SECONDS=10.
// A double underscore descends further into the key, as in
// AUTOAGENT_MEMORY_LIMITS__FACT=100.
const EnvPrefix = "AUTOAGENT_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Memory    MemoryConfig    `koanf:"memory"`
	Security  SecurityConfig  `koanf:"security"`
	Tools     ToolsConfig     `koanf:"tools"`
	Agent     AgentConfig     `koanf:"agent"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"` // json, text
	File       string `koanf:"file"`   // empty disables the file sink
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"` // ollama, openai, mock
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	TopP        float64       `koanf:"top_p"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`
}

type MemoryConfig struct {
	Provider          string       `koanf:"provider"` // chromem, qdrant, inmemory
	PersistDirectory  string       `koanf:"persist_directory"`
	QdrantAddr        string       `koanf:"qdrant_addr"`
	EmbedderProvider  string       `koanf:"embedder_provider"` // ollama, openai, hash
	EmbedderBaseURL   string       `koanf:"embedder_base_url"`
	EmbedderModel     string       `koanf:"embedder_model"`
	EmbedderAPIKey    string       `koanf:"embedder_api_key"`
	Dimension         int          `koanf:"dimension"` // 0 probes the embedder
	LearningThreshold float64      `koanf:"learning_threshold"`
	Limits            LimitsConfig `koanf:"limits"`
}

// LimitsConfig caps the number of records per memory collection.
type LimitsConfig struct {
	Conversation int `koanf:"conversation"`
	Fact         int `koanf:"fact"`
	ToolUsage    int `koanf:"tool_usage"`
	Preference   int `koanf:"preference"`
}

type SecurityConfig struct {
	EnableCommandExecution bool     `koanf:"enable_command_execution"`
	EnablePythonExec       bool     `koanf:"enable_python_exec"`
	AllowedFilePaths       []string `koanf:"allowed_file_paths"`
	BlockedCommands        []string `koanf:"blocked_commands"`
	MaxFileSizeBytes       int64    `koanf:"max_file_size_bytes"`
	ExecTimeoutSeconds     int      `koanf:"exec_timeout_seconds"`
}

type ToolsConfig struct {
	WebSearchMaxResults    int    `koanf:"web_search_max_results"`
	WikipediaSummaryLength int    `koanf:"wikipedia_summary_length"`
	FileReadLimit          int    `koanf:"file_read_limit"`
	CommandOutputLimit     int    `koanf:"command_output_limit"`
	CodeIsolation          string `koanf:"code_isolation"` // process, inline
	CodeMemoryLimitMB      int    `koanf:"code_memory_limit_mb"`
	UserAgent              string `koanf:"user_agent"`
	HistoryPath            string `koanf:"history_path"` // sqlite file, empty keeps history in memory
}

type AgentConfig struct {
	MemoryK         int     `koanf:"memory_k"`
	RecallThreshold float64 `koanf:"recall_threshold"`
	HistoryWindow   int     `koanf:"history_window"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// BaseDir returns the directory holding memory, logs and data by default.
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "autoagent")
	}
	return filepath.Join(home, ".autoagent")
}

func defaults() map[string]any {
	base := BaseDir()
	return map[string]any{
		"log.level":       "info",
		"log.format":      "text",
		"log.file":        filepath.Join(base, "logs", "agent.log"),
		"log.max_size_mb": 10,
		"log.max_backups": 5,

		"llm.provider":     "ollama",
		"llm.model":        "llama3.2:3b-instruct-q5_K_M",
		"llm.base_url":     "http://localhost:11434",
		"llm.temperature":  0.7,
		"llm.top_p":        0.95,
		"llm.max_tokens":   2048,
		"llm.timeout":      "120s",
		"llm.max_attempts": 2,

		"memory.provider":           "chromem",
		"memory.persist_directory":  filepath.Join(base, "memory"),
		"memory.qdrant_addr":        "localhost:6334",
		"memory.embedder_provider":  "ollama",
		"memory.embedder_base_url":  "http://localhost:11434",
		"memory.embedder_model":     "all-minilm",
		"memory.dimension":          0,
		"memory.learning_threshold": 0.75,
		"memory.limits.conversation": 1000,
		"memory.limits.fact":         500,
		"memory.limits.tool_usage":   500,
		"memory.limits.preference":   200,

		"security.enable_command_execution": false,
		"security.enable_python_exec":       false,
		"security.allowed_file_paths":       []string{filepath.Join(base, "data")},
		"security.blocked_commands":         []string{"format", "del", "rm -rf", "shutdown", "reboot", "mkfs"},
		"security.max_file_size_bytes":      int64(10 * 1024 * 1024),
		"security.exec_timeout_seconds":     30,

		"tools.web_search_max_results":   5,
		"tools.wikipedia_summary_length": 1000,
		"tools.file_read_limit":          2000,
		"tools.command_output_limit":     1000,
		"tools.code_isolation":           "process",
		"tools.code_memory_limit_mb":     64,
		"tools.user_agent":               "autoagent/1.0",
		"tools.history_path":             "",

		"agent.memory_k":         3,
		"agent.recall_threshold": 0.92,
		"agent.history_window":   10,

		"telemetry.enabled":  false,
		"telemetry.exporter": "stdout",
	}
}

// Provider exposes raw configuration lookups by section and key.
type Provider struct {
	k *koanf.Koanf
}

// Get returns section.key or def when the key is unset.
func (p *Provider) Get(section, key string, def any) any {
	path := key
	if section != "" {
		path = section + "." + key
	}
	if !p.k.Exists(path) {
		return def
	}
	return p.k.Get(path)
}

// Config decodes and validates the loaded configuration.
func (p *Provider) Config() (*Config, error) {
	var cfg Config
	if err := p.k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "decode configuration", err)
	}
	cfg.Security.AllowedFilePaths = splitList(cfg.Security.AllowedFilePaths)
	cfg.Security.BlockedCommands = splitList(cfg.Security.BlockedCommands)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList expands comma-separated entries, which is how lists arrive
// from environment variables and overrides.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Options selects configuration sources for NewProvider.
type Options struct {
	Path      string
	Profile   string
	Overrides []string // key=value
}

// NewProvider loads defaults, files, environment and overrides.
func NewProvider(opts Options) (*Provider, error) {
	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "set default "+key, err)
		}
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "load config file", err).
				WithContext("path", opts.Path)
		}
		if profilePath := profileConfigPath(opts.Path, opts.Profile); profilePath != "" {
			if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
				return nil, errors.New(errors.CodeConfiguration, "load profile config", err).
					WithContext("path", profilePath)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "load environment", err)
	}

	for _, raw := range opts.Overrides {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf(errors.CodeConfiguration, "invalid override %q, expected key=value", raw)
		}
		if err := k.Set(key, strings.TrimSpace(value)); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "apply override "+key, err)
		}
	}

	return &Provider{k: k}, nil
}

// envKey maps AUTOAGENT_SECTION_SOME_KEY to section.some_key.
func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + strings.ReplaceAll(key, "__", ".")
}

// Load reads the configuration at path (optional) and validates it.
func Load(path string) (*Config, error) {
	return LoadWithOptions(Options{Path: path})
}

// LoadWithProfile loads path and overlays config.<profile>.yaml when present.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadWithOptions(Options{Path: path, Profile: profile})
}

// LoadWithOptions is the general form of Load.
func LoadWithOptions(opts Options) (*Config, error) {
	p, err := NewProvider(opts)
	if err != nil {
		return nil, err
	}
	return p.Config()
}

// profileConfigPath returns the profile overlay next to base, or "" when
// there is none on disk.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// Validate rejects values the agent cannot run with.
func (c *Config) Validate() error {
	invalid := func(key string, value any) error {
		return errors.Newf(errors.CodeConfiguration, "invalid value for %s: %v", key, value)
	}
	switch c.LLM.Provider {
	case "ollama", "openai", "mock":
	default:
		return invalid("llm.provider", c.LLM.Provider)
	}
	switch c.Memory.Provider {
	case "chromem", "qdrant", "inmemory":
	default:
		return invalid("memory.provider", c.Memory.Provider)
	}
	switch c.Memory.EmbedderProvider {
	case "ollama", "openai", "hash":
	default:
		return invalid("memory.embedder_provider", c.Memory.EmbedderProvider)
	}
	switch c.Tools.CodeIsolation {
	case "process", "inline":
	default:
		return invalid("tools.code_isolation", c.Tools.CodeIsolation)
	}
	if c.Memory.Dimension < 0 {
		return invalid("memory.dimension", c.Memory.Dimension)
	}
	if c.Memory.LearningThreshold < 0 || c.Memory.LearningThreshold > 1 {
		return invalid("memory.learning_threshold", c.Memory.LearningThreshold)
	}
	limits := map[string]int{
		"memory.limits.conversation": c.Memory.Limits.Conversation,
		"memory.limits.fact":         c.Memory.Limits.Fact,
		"memory.limits.tool_usage":   c.Memory.Limits.ToolUsage,
		"memory.limits.preference":   c.Memory.Limits.Preference,
	}
	for key, v := range limits {
		if v < 1 {
			return invalid(key, v)
		}
	}
	if c.Security.MaxFileSizeBytes <= 0 {
		return invalid("security.max_file_size_bytes", c.Security.MaxFileSizeBytes)
	}
	if c.Security.ExecTimeoutSeconds <= 0 {
		return invalid("security.exec_timeout_seconds", c.Security.ExecTimeoutSeconds)
	}
	if c.Tools.FileReadLimit <= 0 {
		return invalid("tools.file_read_limit", c.Tools.FileReadLimit)
	}
	if c.Agent.MemoryK < 0 {
		return invalid("agent.memory_k", c.Agent.MemoryK)
	}
	if c.Agent.RecallThreshold <= 0 || c.Agent.RecallThreshold > 1 {
		return invalid("agent.recall_threshold", c.Agent.RecallThreshold)
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		return invalid("telemetry.otlp_endpoint", "")
	}
	return nil
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := append([]string(nil), c.Security.AllowedFilePaths...)
	if c.Memory.Provider == "chromem" && c.Memory.PersistDirectory != "" {
		dirs = append(dirs, c.Memory.PersistDirectory)
	}
	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}
	if c.Tools.HistoryPath != "" {
		dirs = append(dirs, filepath.Dir(c.Tools.HistoryPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(errors.CodeConfiguration, fmt.Sprintf("create directory %s", dir), err)
		}
	}
	return nil
}
