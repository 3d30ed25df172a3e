/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package atomicx

import (
	"context"
	"sync"
	"sync/atomic"
)

// Flag is a one-shot, monotonic boolean: it transitions unset -> set exactly
// once per incarnation and never back. Besides a lock-free IsSet poll, it
// exposes Wait so a worker can block on the transition instead of spinning —
// this is the "channel-closure as broadcast" replacement for an event object
// that the design notes call for.
type Flag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
}

// NewFlag returns a cleared Flag, ready to use.
func NewFlag() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Set transitions the flag to set. Safe to call more than once; only the
// first call closes the broadcast channel.
func (f *Flag) Set() {
	if f.set.CompareAndSwap(false, true) {
		f.once.Do(func() { close(f.done) })
	}
}

// IsSet reports whether Set has been called.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Wait blocks until the flag is set, the context is done, or the deadline
// implied by ctx expires, whichever comes first.
func (f *Flag) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns the broadcast channel, closed exactly once when Set is
// called. Useful in a select alongside other suspension points.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}

// Reset clears the flag for a new incarnation, replacing the broadcast
// channel. Must only be called when no worker can still be observing the
// previous incarnation's channel (i.e. after the owning Handler has joined
// all four workers).
func (f *Flag) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.set.Store(false)
	f.once = sync.Once{}
	f.done = make(chan struct{})
}
