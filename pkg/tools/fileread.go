// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/security"
)

const (
	FileReadToolName     = "file_read"
	defaultFileReadLimit = 2000
)

// FileReadTool returns the beginning of a file inside the allowed
// directories.
type FileReadTool struct {
	policy *security.Policy
	limit  int
}

// NewFileReadTool creates the file_read tool returning at most limit
// characters (2000 when limit is not positive).
func NewFileReadTool(policy *security.Policy, limit int) *FileReadTool {
	if limit <= 0 {
		limit = defaultFileReadLimit
	}
	return &FileReadTool{policy: policy, limit: limit}
}

func (t *FileReadTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        FileReadToolName,
		Description: "Read a file from the allowed directories",
		Capability:  CapabilitySafe,
	}
}

func (t *FileReadTool) Validate(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New(errors.CodeInvalidInput, "empty path", nil)
	}
	return nil
}

func (t *FileReadTool) Invoke(_ context.Context, input string) (Result, error) {
	if t.policy == nil {
		return Result{}, errors.New(errors.CodePermissionDenied, "no directories are allowed", nil)
	}
	path, err := t.policy.ResolvePath(unquote(Argument(input, FileReadToolName)))
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errors.Newf(errors.CodeNotFound, "file %s does not exist", path)
		}
		return Result{}, errors.New(errors.CodeToolFailure, "cannot stat file", err)
	}
	if info.IsDir() {
		return Result{}, errors.Newf(errors.CodeInvalidInput, "%s is a directory", path)
	}
	if limit := t.policy.MaxFileSizeBytes(); info.Size() > limit {
		return Result{}, errors.Newf(errors.CodeTooLarge, "file too large to read: %.2fMB",
			float64(info.Size())/1024/1024).
			WithContext("limit_bytes", limit)
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.New(errors.CodeToolFailure, "cannot open file", err)
	}
	defer f.Close()

	// A UTF-8 character is at most four bytes long.
	raw, err := io.ReadAll(io.LimitReader(f, int64(t.limit)*4))
	if err != nil {
		return Result{}, errors.New(errors.CodeToolFailure, "cannot read file", err)
	}
	text := strings.ToValidUTF8(string(raw), "")
	return Result{Output: truncateRunes(text, t.limit)}, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
