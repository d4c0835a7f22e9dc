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
	"unsafe"
)

// ByteEq documents payload types whose Go == already agrees with raw byte
// equality — every fixed-width integer and bool. It is not enforced by the
// compiler the way a marker trait would be in a language with operator
// overloading; it exists so callers who know their T qualifies can reach for
// the plain comparable-constrained CompareAndSet with confidence, instead of
// having to reason about whether their value equality might be coarser than
// bytes (the case CompareAndSetFunc exists for).
type ByteEq interface {
	~bool | ~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer constrains AtomicCell's Add/Sub to Go's integer types. 32- and
// 64-bit ones use a hardware atomic add; 8- and 16-bit ones take the
// striped-lock path.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// bytesEqual compares a and b byte-for-byte rather than with T's own ==,
// which Go cannot override. It is what makes compare_and_set and Update's
// retry loops terminate correctly even when the caller's notion of equality
// is coarser than the machine word the cell actually stores.
func bytesEqual[T any](a, b T) bool {
	size := unsafe.Sizeof(a)
	if size == 0 {
		return true
	}
	ap := unsafe.Slice((*byte)(unsafe.Pointer(&a)), size)
	bp := unsafe.Slice((*byte)(unsafe.Pointer(&b)), size)
	for i := range ap {
		if ap[i] != bp[i] {
			return false
		}
	}
	return true
}
