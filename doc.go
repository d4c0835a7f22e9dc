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

// Package atomic provides two concurrency primitives that do not exist in the
// standard library: AtomicCell[T], a cell that is atomic for any T when the
// hardware can manage it and falls back to a striped spinlock otherwise, and
// HazardArc[T]/SharedArc[T], a hazard-pointer-protected atomic reference-counted
// slot that lets readers observe a publisher's latest value without blocking
// the publisher and without requiring a tracing GC to reclaim the old value.
//
// Both types are built on the same two supporting layers: a 499-way striped
// lock table (stripedlock.go) for payloads whose size does not match a
// hardware atomic or that contain references the garbage collector must
// trace (bare pointers themselves ride a pointer atomic), and a
// word-dispatch layer (dispatch.go)
// that decides, once per instantiation, which hardware atomic (if any) a given
// T can ride.
package atomic
