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

// Package relay implements the peer slot engine: the per-slot datagram
// channels, keep-alive state machines, receive/relay workers, the server
// admission worker, and the supervisor that incarnates and resets them.
package relay

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Channel.Recv when no datagram arrives within the
// requested bound, mirroring queue.Empty on the bounded multiprocessing
// queue this replaces.
var ErrTimeout = errors.New("relay: receive timed out")

// Channel is the bounded hand-off queue between a receive worker and its
// matching relay worker (source_queue/destination_queue in the data model).
// Capacity defaults to config.DefaultPacketQueueSize; a full channel still
// accepts a blocking Send, matching the original's blocking Queue.put.
type Channel struct {
	ch chan []byte
}

// NewChannel returns a Channel with the given bounded capacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = 1
	}
	return &Channel{ch: make(chan []byte, capacity)}
}

// Full reports whether the channel is at capacity, for the caller to log a
// capacity warning before blocking on Send.
func (c *Channel) Full() bool {
	return len(c.ch) == cap(c.ch)
}

// Send enqueues payload, blocking until there is room or ctx is done.
func (c *Channel) Send(ctx context.Context, payload []byte) error {
	select {
	case c.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv dequeues a payload, blocking up to timeout. It returns ErrTimeout on
// expiry and ctx.Err() if ctx is done first.
func (c *Channel) Recv(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case payload := <-c.ch:
		return payload, nil
	case <-t.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
