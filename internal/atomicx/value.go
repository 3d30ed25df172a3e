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

// Package atomicx holds the lock-free primitives the relay's shared slot
// state is built from: a generic typed Value, and a one-shot Flag that
// doubles as a broadcast signal. No entity in the data model needs a mutex
// because writers are always partitioned by role (see slot.go).
package atomicx

import (
	"sync/atomic"
)

// Value is a type-safe wrapper around atomic.Value, avoiding the interface{}
// boxing dance at every call site. The zero value is ready to use and Loads
// as the zero value of T.
type Value[T any] struct {
	v atomic.Value
}

type box[T any] struct {
	val T
}

// Load returns the current value, or the zero value of T if Store was never
// called.
func (o *Value[T]) Load() T {
	if b, ok := o.v.Load().(box[T]); ok {
		return b.val
	}
	var zero T
	return zero
}

// Store sets the current value.
func (o *Value[T]) Store(val T) {
	o.v.Store(box[T]{val: val})
}
