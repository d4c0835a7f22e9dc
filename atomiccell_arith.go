// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package atomic

import (
	"sync/atomic"
	"unsafe"
)

// Add adds delta to the cell's value and returns the new value. Go's
// generic methods cannot be restricted to a narrower type parameter than
// the one their receiver was instantiated with, so — like the standard
// library's slices and maps packages when they need a constraint narrower
// than their container's — Add is a free function rather than a method.
//
// Overflow wraps, matching Go's own +/- semantics for fixed-width integers;
// no separate wrapping step is needed the way it is in languages that trap
// on overflow by default.
func Add[T Integer](c *AtomicCell[T], delta T) T {
	switch c.kind {
	case kind32:
		d := *(*uint32)(unsafe.Pointer(&delta))
		sum := atomic.AddUint32((*uint32)(unsafe.Pointer(&c.value)), d)
		return *(*T)(unsafe.Pointer(&sum))
	case kind64:
		d := *(*uint64)(unsafe.Pointer(&delta))
		sum := atomic.AddUint64((*uint64)(unsafe.Pointer(&c.value)), d)
		return *(*T)(unsafe.Pointer(&sum))
	default:
		g := acquireStripe(uintptr(unsafe.Pointer(&c.value)))
		defer g.Release()
		c.value += delta
		return c.value
	}
}

// Sub subtracts delta from the cell's value and returns the new value.
func Sub[T Integer](c *AtomicCell[T], delta T) T {
	switch c.kind {
	case kind32:
		d := *(*uint32)(unsafe.Pointer(&delta))
		neg := ^d + 1
		sum := atomic.AddUint32((*uint32)(unsafe.Pointer(&c.value)), neg)
		return *(*T)(unsafe.Pointer(&sum))
	case kind64:
		d := *(*uint64)(unsafe.Pointer(&delta))
		neg := ^d + 1
		sum := atomic.AddUint64((*uint64)(unsafe.Pointer(&c.value)), neg)
		return *(*T)(unsafe.Pointer(&sum))
	default:
		g := acquireStripe(uintptr(unsafe.Pointer(&c.value)))
		defer g.Release()
		c.value -= delta
		return c.value
	}
}
