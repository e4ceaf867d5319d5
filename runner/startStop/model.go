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

package startStop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	errInvalidStart = errors.New("invalid start function")
	errInvalidStop  = errors.New("invalid stop function")
)

type runner struct {
	mu sync.Mutex

	fnStart FuncStart
	fnStop  FuncStop

	running atomic.Bool
	started atomic.Value // time.Time

	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	errs  []error
}

func (o *runner) pushErr(e error) {
	if e == nil {
		return
	}
	o.errMu.Lock()
	o.errs = append(o.errs, e)
	o.errMu.Unlock()
}

func (o *runner) ErrorsLast() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	if len(o.errs) == 0 {
		return nil
	}
	return o.errs[len(o.errs)-1]
}

func (o *runner) ErrorsList() []error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	out := make([]error, len(o.errs))
	copy(out, o.errs)
	return out
}

func (o *runner) IsRunning() bool {
	return o.running.Load()
}

func (o *runner) Uptime() time.Duration {
	if !o.running.Load() {
		return 0
	}
	if t, ok := o.started.Load().(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

func (o *runner) stopLocked(ctx context.Context) error {
	if !o.running.Load() {
		return nil
	}

	cancel := o.cancel
	done := o.done

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	o.running.Store(false)

	if o.fnStop == nil {
		o.pushErr(errInvalidStop)
		return nil
	}

	if e := o.fnStop(ctx); e != nil {
		o.pushErr(e)
	}

	return nil
}

func (o *runner) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.stopLocked(ctx)
}

func (o *runner) startLocked(ctx context.Context) error {
	if o.running.Load() {
		if e := o.stopLocked(ctx); e != nil {
			return e
		}
	}

	if o.fnStart == nil {
		o.pushErr(errInvalidStart)
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.cancel = cancel
	o.done = done
	o.started.Store(time.Now())
	o.running.Store(true)

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				o.pushErr(fmt.Errorf("recovered panic: %v", r))
			}
		}()

		if e := o.fnStart(cctx); e != nil {
			o.pushErr(e)
		}
	}()

	return nil
}

func (o *runner) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.startLocked(ctx)
}

func (o *runner) Restart(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if e := o.stopLocked(ctx); e != nil {
		return e
	}

	return o.startLocked(ctx)
}
