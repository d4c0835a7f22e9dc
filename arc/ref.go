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

// Package arc is a minimal manually-counted reference, the concrete stand-in
// for the "pointer" collaborator that HazardArc needs but does not itself
// specify. Go's garbage collector reclaims memory whenever it likes, with no
// guaranteed timing and no destructor hook, so it cannot by itself give
// callers the "the Nth release runs the cleanup exactly once" guarantee
// HazardArc's contract depends on. Ref supplies that guarantee by hand: a
// strong count, decremented atomically, with the last releaser running a
// caller-supplied cleanup exactly once.
package arc

import (
	"sync/atomic"
	"unsafe"
)

// Ref is a one-word-sized handle: a pointer to a shared header that carries
// the strong count and the value. HazardArc stores it as that single pointer
// word (see Addr). An AtomicCell[Ref[T]] does not use the pointer-word fast
// path: Ref is a struct containing a pointer, so it goes through the striped
// lock.
type Ref[T any] struct {
	h *header[T]
}

type header[T any] struct {
	value   T
	strong  int64
	destroy func(T)
}

// NewRef creates a Ref with a strong count of one. destroy may be nil, in
// which case the value is simply dropped (left for the garbage collector)
// once the last Ref referencing it is released.
func NewRef[T any](value T, destroy func(T)) Ref[T] {
	return Ref[T]{h: &header[T]{value: value, strong: 1, destroy: destroy}}
}

// Valid reports whether r refers to a live header. The zero Ref is invalid,
// mirroring the "no Arc" case of the originating Option<Arc<T>>.
func (r Ref[T]) Valid() bool {
	return r.h != nil
}

// Value returns the referenced value. It does not affect the strong count.
func (r Ref[T]) Value() T {
	return r.h.value
}

// Clone increments the strong count and returns a handle to the same
// header — not a deep copy, exactly like cloning an Arc.
func (r Ref[T]) Clone() Ref[T] {
	atomic.AddInt64(&r.h.strong, 1)
	return Ref[T]{h: r.h}
}

// Release decrements the strong count. The caller that observes the count
// reach zero is the one responsible for running the destructor — exactly
// once, no matter how many concurrent releasers there are.
func (r Ref[T]) Release() {
	if r.h == nil {
		return
	}
	if atomic.AddInt64(&r.h.strong, -1) == 0 {
		if r.h.destroy != nil {
			r.h.destroy(r.h.value)
		}
	}
}

// StrongCount reports the current strong count. Intended for tests and
// diagnostics; under concurrent Clone/Release it is a snapshot, not a
// linearizable read.
func (r Ref[T]) StrongCount() int64 {
	if r.h == nil {
		return 0
	}
	return atomic.LoadInt64(&r.h.strong)
}

// Addr exposes the header address as the single machine word that
// HazardArc's slot stores. It is exported for use by the atomic package in
// this module, which stores and compares Refs as unsafe.Pointer; it is not
// meant for general callers, who should use Clone/Release/Value instead.
func (r Ref[T]) Addr() unsafe.Pointer {
	return unsafe.Pointer(r.h)
}

// FromAddr rebuilds the Ref a slot holds from its raw address. Used
// exclusively by HazardArc to turn a recovered unsafe.Pointer back into a
// typed Ref; an invalid Ref (Addr returned nil) round-trips to the zero Ref.
func FromAddr[T any](p unsafe.Pointer) Ref[T] {
	return Ref[T]{h: (*header[T])(p)}
}
