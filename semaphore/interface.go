/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package semaphore bounds the number of concurrent workers spawned from a
// single goroutine, with an optional live progress bar for interactive use.
package semaphore

import (
	"context"
	"runtime"
)

// Semaphore limits concurrent workers acquired from the main goroutine.
type Semaphore interface {
	// NewWorker blocks until a slot is free, then acquires it.
	NewWorker() error

	// NewWorkerTry acquires a slot without blocking. It returns false if the
	// semaphore is already at capacity.
	NewWorkerTry() bool

	// DeferWorker releases a slot acquired by NewWorker/NewWorkerTry.
	DeferWorker()

	// DeferMain releases resources owned by the semaphore itself (the
	// progress bar, if any). Call once, from the goroutine that created it.
	DeferMain()

	// Weighted returns the configured maximum number of concurrent workers.
	Weighted() int64
}

// MaxSimultaneous returns the default number of concurrent workers, derived
// from the number of usable CPUs.
func MaxSimultaneous() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// SetSimultaneous validates a requested worker count, falling back to
// MaxSimultaneous for non-positive values.
func SetSimultaneous(n int64) int64 {
	if n <= 0 {
		return int64(MaxSimultaneous())
	}
	return n
}

// New returns a Semaphore allowing up to max concurrent workers. withProgress
// is accepted for interface parity with progress-bar-aware callers but this
// package never renders one; GetMPB always returns nil.
func New(ctx context.Context, max int, withProgress bool) Semaphore {
	n := SetSimultaneous(int64(max))

	return &sem{
		ctx: ctx,
		max: n,
		ch:  make(chan struct{}, n),
	}
}
