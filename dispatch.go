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
	"reflect"
	"unsafe"
)

// dispatchKind picks how an AtomicCell[T] moves its payload. It is computed
// once, at construction, and cached on the cell: reflect.Type walks are not
// cheap enough to repeat on every Get/Set.
type dispatchKind uint8

const (
	kindZero dispatchKind = iota
	kindPointer
	kind32
	kind64
	kindLocked
)

var wordSize = unsafe.Sizeof(uintptr(0))

// dispatchKindFor decides which hardware atomic (if any) T is representable
// as. Go's sync/atomic exposes pointer-width, 32-bit and 64-bit atomics only
// (no 8/16-bit atomics), so the word search here is narrower than the
// originating Rust crate's: a 1- or 2-byte T always falls back to the striped
// lock. Any T that transitively contains a pointer, slice, map, channel,
// interface or string is also routed to the striped lock regardless of its
// size, so the fast path never hides a live reference from the GC behind a
// bare integer.
func dispatchKindFor[T any]() dispatchKind {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	size := t.Size()

	switch {
	case size == 0:
		return kindZero
	case isPointerKind(t) && size == wordSize:
		return kindPointer
	case containsPointer(t):
		return kindLocked
	case size == 4 && t.Align() >= 4:
		return kind32
	case size == 8 && uintptr(t.Align()) >= 8:
		return kind64
	default:
		return kindLocked
	}
}

func isPointerKind(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr || t.Kind() == reflect.UnsafePointer
}

// containsPointer reports whether t, or any field/element reachable from it,
// is a reference type the garbage collector must trace. Such types are never
// routed through the raw word-reinterpret fast path.
func containsPointer(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.Slice, reflect.String:
		return true
	case reflect.Array:
		return containsPointer(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if containsPointer(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsLockFree reports whether AtomicCell[T] rides a real hardware atomic for
// every operation, as opposed to falling back to the striped lock table.
func IsLockFree[T any]() bool {
	return dispatchKindFor[T]() != kindLocked
}
