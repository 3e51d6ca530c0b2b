// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sync"
)

// Status of a degradable dependency.
type Status string

const (
	StatusOperational Status = "operational"
	StatusDegraded    Status = "degraded"
)

// Degrader runs a primary operation and substitutes a fallback value when
// it fails. It tracks consecutive failures so callers can report whether
// the dependency is degraded.
type Degrader[T any] struct {
	// Fallback produces the substitute value from the primary error.
	Fallback func(ctx context.Context, err error) T
	// LogError, when set, observes every primary failure.
	LogError func(err error)
	// MaxErrors is the number of consecutive failures after which Status
	// reports degraded (default 1).
	MaxErrors int

	mu     sync.Mutex
	errors int
}

// Execute returns the primary value, or the fallback value and the
// primary error when it fails.
func (d *Degrader[T]) Execute(ctx context.Context, primary func(ctx context.Context) (T, error)) (T, error) {
	v, err := primary(ctx)
	d.mu.Lock()
	if err == nil {
		d.errors = 0
		d.mu.Unlock()
		return v, nil
	}
	d.errors++
	d.mu.Unlock()

	if d.LogError != nil {
		d.LogError(err)
	}
	var fallback T
	if d.Fallback != nil {
		fallback = d.Fallback(ctx, err)
	}
	return fallback, err
}

// Status reports whether the dependency is currently degraded.
func (d *Degrader[T]) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	threshold := d.MaxErrors
	if threshold < 1 {
		threshold = 1
	}
	if d.errors >= threshold {
		return StatusDegraded
	}
	return StatusOperational
}
