// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package stopper provides cooperative-shutdown contexts: a Context
// that owns a pool of goroutines started with Go, a Stopping channel
// that closes the moment shutdown begins (before the goroutines have
// actually finished), and a Wait that blocks until every goroutine has
// returned. It's the coordination primitive the supervisor's per-pair
// workers (§4.7) are built on.
package stopper

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Context is a context.Context augmented with cooperative-shutdown
// bookkeeping. The zero value is not usable; construct one with
// WithContext.
type Context struct {
	context.Context

	cancel context.CancelFunc

	stopping chan struct{}
	stopOnce sync.Once

	wg       sync.WaitGroup
	mu       sync.Mutex
	firstErr error
}

// WithContext returns a new stopper.Context whose cancellation is tied
// to parent's, plus its own Stop method.
func WithContext(parent context.Context) *Context {
	inner, cancel := context.WithCancel(parent)
	c := &Context{
		Context:  inner,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
	go func() {
		<-inner.Done()
		c.stopOnce.Do(func() { close(c.stopping) })
	}()
	return c
}

// Go launches fn in its own goroutine, tracked by Wait. If fn returns a
// non-nil error, Stop is called (so sibling goroutines observe
// Stopping() closing) and the error is recorded as the first error seen,
// matching the teacher's call-site usage of ctx.Go for
// background-cleanup goroutines that should bring the whole Context down
// on failure.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			if c.firstErr == nil {
				c.firstErr = err
			}
			c.mu.Unlock()
			c.Stop()
		}
	}()
}

// Stopping returns a channel that closes when Stop is first called or
// the parent context is canceled, whichever happens first. Workers
// select on it to notice shutdown without necessarily observing ctx.Err()
// directly (e.g. while blocked on a channel send).
func (c *Context) Stopping() <-chan struct{} {
	return c.stopping
}

// Stop requests cooperative shutdown: it closes Stopping and cancels the
// underlying context. Safe to call more than once or concurrently.
func (c *Context) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopping)
	})
	c.cancel()
}

// Wait blocks until every goroutine started with Go has returned, then
// returns the first non-nil error any of them produced, if any.
func (c *Context) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstErr
}

// ErrStopped is a sentinel for operations that notice Stopping has
// closed and decline to start new work. Nothing in this package returns
// it itself.
var ErrStopped = errors.New("stopper: context is stopping")
