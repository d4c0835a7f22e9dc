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

// AtomicCell is a cell holding a single T that is safe for concurrent
// access. If T fits a hardware atomic word, every operation is genuinely
// lock-free; otherwise the cell transparently falls back to a stripe of the
// package-wide lock table, keyed by the cell's own address.
type AtomicCell[T any] struct {
	value  T
	kind   dispatchKind
	onDrop func(T)
}

// New creates a cell holding v. The payload has no destructor: Set simply
// overwrites it.
func New[T any](v T) *AtomicCell[T] {
	return &AtomicCell[T]{value: v, kind: dispatchKindFor[T]()}
}

// NewWithDrop creates a cell holding v whose onDrop runs exactly once on any
// value the cell ever discards without handing it back to a caller: a value
// Set overwrites, and whatever value is still resident when Close runs.
// Values returned by Replace/Take/IntoInner are the caller's responsibility
// and are never passed to onDrop.
func NewWithDrop[T any](v T, onDrop func(T)) *AtomicCell[T] {
	return &AtomicCell[T]{value: v, kind: dispatchKindFor[T](), onDrop: onDrop}
}

// AsPointer returns a raw pointer to the cell's storage, for callers that
// need to bypass the cell's own synchronization entirely. The caller is
// responsible for ensuring no data race results.
func (c *AtomicCell[T]) AsPointer() unsafe.Pointer {
	return unsafe.Pointer(&c.value)
}

// GetMut returns a pointer to the cell's storage for exclusive use. The
// caller must guarantee no other goroutine is concurrently using the cell.
func (c *AtomicCell[T]) GetMut() *T {
	return &c.value
}

// IntoInner returns the cell's current value without going through the
// atomic/lock machinery. Like GetMut, it requires the caller to have
// exclusive access to the cell — typically because the cell is about to be
// discarded.
func (c *AtomicCell[T]) IntoInner() T {
	return c.value
}

// Close runs onDrop (if one was registered with NewWithDrop) on whatever
// value is currently resident, then clears onDrop so a second Close is a
// no-op. Call Close when the cell itself is being discarded, mirroring
// running a destructor at end of scope.
func (c *AtomicCell[T]) Close() {
	if c.onDrop == nil {
		return
	}
	onDrop := c.onDrop
	c.onDrop = nil
	onDrop(c.value)
}

// Set stores v, discarding the previous value. If the cell has a registered
// destructor, Set routes through Replace so the discarded value is dropped;
// otherwise it is a plain store.
func (c *AtomicCell[T]) Set(v T) {
	if c.onDrop != nil {
		old := c.Replace(v)
		c.onDrop(old)
		return
	}
	c.store(v)
}

// Replace stores v and returns the previous value. The caller now owns
// whatever cleanup the previous value needs; Replace itself never invokes
// onDrop.
func (c *AtomicCell[T]) Replace(v T) T {
	return c.swap(v)
}

// Take replaces the cell's value with T's zero value and returns the
// previous value.
func (c *AtomicCell[T]) Take() T {
	var zero T
	return c.Replace(zero)
}

// Get returns the cell's current value.
func (c *AtomicCell[T]) Get() T {
	return c.load()
}

// Update repeatedly applies f to the cell's current value and attempts to
// install the result, retrying until no other goroutine interleaved a
// change, then returns the newly installed value. f may be invoked more
// than once and must be side-effect free.
func (c *AtomicCell[T]) Update(f func(T) T) T {
	current := c.load()
	for {
		next := f(current)
		prev := c.cas(current, next)
		if bytesEqual(prev, current) {
			return next
		}
		current = prev
	}
}

// CompareAndSet stores new if the cell's current value equals current
// (via ==) and reports whether it did so. T must be comparable.
func CompareAndSet[T comparable](c *AtomicCell[T], current, new T) bool {
	return c.CompareAndSetFunc(current, new, func(a, b T) bool { return a == b })
}

// CompareAndSetFunc stores new if the cell's current value is equal to
// current per equal, and reports whether it did so. Use this instead of the
// comparable-constrained CompareAndSet when T's intended notion of equality
// is coarser than Go's ==.
//
// The retry loop underneath always compares raw bytes first: if the value
// observed by the CAS is byte-equal to current, the store happened. If its
// bytes differ from current but equal still reports the two as equal, the
// mismatch is not a real change of value, so the loop retries with the
// freshly observed value as current rather than reporting failure.
func (c *AtomicCell[T]) CompareAndSetFunc(current, new T, equal func(a, b T) bool) bool {
	for {
		prev := c.cas(current, new)
		if bytesEqual(prev, current) {
			return true
		}
		if !equal(prev, current) {
			return false
		}
		current = prev
	}
}

func (c *AtomicCell[T]) store(v T) {
	switch c.kind {
	case kindZero:
		return
	case kindPointer:
		atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&c.value)), *(*unsafe.Pointer)(unsafe.Pointer(&v)))
	case kind32:
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&c.value)), *(*uint32)(unsafe.Pointer(&v)))
	case kind64:
		atomic.StoreUint64((*uint64)(unsafe.Pointer(&c.value)), *(*uint64)(unsafe.Pointer(&v)))
	default:
		g := acquireStripe(uintptr(unsafe.Pointer(&c.value)))
		defer g.Release()
		c.value = v
	}
}

func (c *AtomicCell[T]) load() T {
	switch c.kind {
	case kindZero:
		var zero T
		return zero
	case kindPointer:
		p := atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&c.value)))
		return *(*T)(unsafe.Pointer(&p))
	case kind32:
		v := atomic.LoadUint32((*uint32)(unsafe.Pointer(&c.value)))
		return *(*T)(unsafe.Pointer(&v))
	case kind64:
		v := atomic.LoadUint64((*uint64)(unsafe.Pointer(&c.value)))
		return *(*T)(unsafe.Pointer(&v))
	default:
		g := acquireStripe(uintptr(unsafe.Pointer(&c.value)))
		defer g.Release()
		return c.value
	}
}

func (c *AtomicCell[T]) swap(v T) T {
	switch c.kind {
	case kindZero:
		var zero T
		return zero
	case kindPointer:
		old := atomic.SwapPointer((*unsafe.Pointer)(unsafe.Pointer(&c.value)), *(*unsafe.Pointer)(unsafe.Pointer(&v)))
		return *(*T)(unsafe.Pointer(&old))
	case kind32:
		old := atomic.SwapUint32((*uint32)(unsafe.Pointer(&c.value)), *(*uint32)(unsafe.Pointer(&v)))
		return *(*T)(unsafe.Pointer(&old))
	case kind64:
		old := atomic.SwapUint64((*uint64)(unsafe.Pointer(&c.value)), *(*uint64)(unsafe.Pointer(&v)))
		return *(*T)(unsafe.Pointer(&old))
	default:
		g := acquireStripe(uintptr(unsafe.Pointer(&c.value)))
		defer g.Release()
		old := c.value
		c.value = v
		return old
	}
}

// cas attempts to install new if the cell currently holds bytes identical
// to current, and always returns the value actually observed beforehand
// (equal to current on success).
func (c *AtomicCell[T]) cas(current, new T) T {
	switch c.kind {
	case kindZero:
		var zero T
		return zero
	case kindPointer:
		cp := *(*unsafe.Pointer)(unsafe.Pointer(&current))
		np := *(*unsafe.Pointer)(unsafe.Pointer(&new))
		addr := (*unsafe.Pointer)(unsafe.Pointer(&c.value))
		if atomic.CompareAndSwapPointer(addr, cp, np) {
			return current
		}
		observed := atomic.LoadPointer(addr)
		return *(*T)(unsafe.Pointer(&observed))
	case kind32:
		cv := *(*uint32)(unsafe.Pointer(&current))
		nv := *(*uint32)(unsafe.Pointer(&new))
		addr := (*uint32)(unsafe.Pointer(&c.value))
		if atomic.CompareAndSwapUint32(addr, cv, nv) {
			return current
		}
		observed := atomic.LoadUint32(addr)
		return *(*T)(unsafe.Pointer(&observed))
	case kind64:
		cv := *(*uint64)(unsafe.Pointer(&current))
		nv := *(*uint64)(unsafe.Pointer(&new))
		addr := (*uint64)(unsafe.Pointer(&c.value))
		if atomic.CompareAndSwapUint64(addr, cv, nv) {
			return current
		}
		observed := atomic.LoadUint64(addr)
		return *(*T)(unsafe.Pointer(&observed))
	default:
		g := acquireStripe(uintptr(unsafe.Pointer(&c.value)))
		defer g.Release()
		observed := c.value
		if bytesEqual(observed, current) {
			c.value = new
		}
		return observed
	}
}
