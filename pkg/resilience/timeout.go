// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/jllopis/autoagent/pkg/errors"
)

// WithTimeout runs fn with a context bounded by d. fn must honour the
// context; a zero d runs fn unbounded. Exceeding the deadline yields a
// recoverable CodeTimeout error.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutValue(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutValue is WithTimeout for functions returning a value.
func WithTimeoutValue[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(ctx)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		var zero T
		return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", err).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	}
	return v, err
}
