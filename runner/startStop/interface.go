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

// Package startStop wraps a pair of start/stop functions into a restartable,
// self-monitoring goroutine with uptime and last-error tracking.
package startStop

import (
	"context"
	"time"
)

// FuncStart is run in its own goroutine by Start. It is expected to block
// until ctx is cancelled.
type FuncStart func(ctx context.Context) error

// FuncStop is run by Stop (and by Start when restarting a running instance)
// to unwind whatever FuncStart set up.
type FuncStop func(ctx context.Context) error

// StartStop manages a single restartable background task.
type StartStop interface {
	// Start launches the start function in a new goroutine. If the runner is
	// already running, the previous instance is stopped first. Start returns
	// as soon as the goroutine has been launched; errors from the start
	// function itself surface through ErrorsLast/ErrorsList.
	Start(ctx context.Context) error

	// Restart stops any running instance and starts a new one.
	Restart(ctx context.Context) error

	// Stop shuts down the running instance, if any, by cancelling its
	// context and invoking the stop function. Calling Stop when not running
	// is a no-op.
	Stop(ctx context.Context) error

	// IsRunning reports whether the start function is currently executing.
	IsRunning() bool

	// Uptime returns how long the current instance has been running, or
	// zero if not running.
	Uptime() time.Duration

	// ErrorsLast returns the most recently recorded error, or nil.
	ErrorsLast() error

	// ErrorsList returns every error recorded since creation, oldest first.
	ErrorsList() []error
}

// New returns a StartStop runner wrapping the given start/stop functions.
// Either may be nil; invoking a nil function records an "invalid start
// function" / "invalid stop function" error instead of panicking.
func New(start FuncStart, stop FuncStop) StartStop {
	return &runner{
		fnStart: start,
		fnStop:  stop,
	}
}
