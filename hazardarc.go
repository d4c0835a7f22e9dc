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

	"github.com/filipdulic/atomic/arc"
	"github.com/filipdulic/atomic/hazard"
)

// HazardArc holds a single, possibly-absent arc.Ref[T] that many readers can
// observe concurrently with a single writer replacing it, without the
// writer ever blocking on a reader and without a reader ever needing to pay
// for a reference-count bump just to look at the current value.
//
// inner stores the address of the current Ref's header directly
// (unsafe.Pointer, not a uintptr-encoded integer) so the garbage collector
// always sees it as a live reference for as long as it is published here or
// in any reader's hazard slot.
type HazardArc[T any] struct {
	inner unsafe.Pointer
}

// NewHazardArc creates a HazardArc holding r.
func NewHazardArc[T any](r arc.Ref[T]) *HazardArc[T] {
	return &HazardArc[T]{inner: r.Addr()}
}

// NewEmptyHazardArc creates a HazardArc holding no value.
func NewEmptyHazardArc[T any]() *HazardArc[T] {
	return &HazardArc[T]{}
}

// IntoInner consumes h (the caller must not use h again) and returns the Ref
// it held, without going through the hazard-pointer machinery: the caller
// is assumed to have exclusive access at this point.
func (h *HazardArc[T]) IntoInner() arc.Ref[T] {
	return arc.FromAddr[T](atomic.LoadPointer(&h.inner))
}

// Get returns a SharedArc observing h's current value, claiming a fresh
// hazard.Entry for the duration. Release the returned SharedArc when done;
// it returns the claimed Entry to the registry's free list.
func (h *HazardArc[T]) Get() *SharedArc[T] {
	return h.getWith(hazard.Default().Claim(), true)
}

// GetPinned is like Get, but publishes into a hazard slot from an Entry the
// caller already claimed with hazard.PinOn, amortizing the claim across
// several calls from the same goroutine instead of claiming and releasing
// an Entry on every call.
func (h *HazardArc[T]) GetPinned(p *hazard.Pin) *SharedArc[T] {
	return h.getWith(p.Entry(), false)
}

func (h *HazardArc[T]) getWith(e *hazard.Entry, ownsEntry bool) *SharedArc[T] {
	slot := allocateHazardSlot(e)
	inner := atomic.LoadPointer(&h.inner)

	for {
		// The slot is reset to nil before every publish attempt (including
		// the first) so the platform-specific publish in fence_amd64.go can
		// always assume a nil slot going in, the same way a freshly
		// allocated hazard slot does.
		atomic.StorePointer(slot, nil)
		publishSlot(slot, inner)

		cur := atomic.LoadPointer(&h.inner)
		if cur == inner {
			var owner *hazard.Entry
			if ownsEntry {
				owner = e
			}
			return &SharedArc[T]{inner: inner, slot: slot, entry: owner}
		}

		// inner went stale before we could confirm it: relinquish the hazard
		// protection we just published for it. If a writer's
		// TryTransferDropResponsibility already CASed our slot to nil in the
		// window between the publish above and this reload, the swap below
		// observes nil instead of inner and responsibility for finalizing
		// inner has passed to us; run it now instead of silently losing it.
		if atomic.SwapPointer(slot, nil) != inner {
			dropRaw[T](inner)
		}
		inner = cur
	}
}

func allocateHazardSlot(e *hazard.Entry) *unsafe.Pointer {
	slots := e.Slots()
	for i := range slots {
		if atomic.LoadPointer(&slots[i]) == nil {
			return &slots[i]
		}
	}
	return allocateHazardSlot(e.Next())
}

// Replace stores r and returns a SharedArc for the previous value. Because
// the previous value came from a swap rather than a hazard-protected read,
// the returned SharedArc carries no hazard slot of its own: Release on it
// either transfers drop responsibility to whichever reader still has the
// old value hazard-protected, or drops it directly.
func (h *HazardArc[T]) Replace(r arc.Ref[T]) *SharedArc[T] {
	old := atomic.SwapPointer(&h.inner, r.Addr())
	return &SharedArc[T]{inner: old}
}

// Set stores r, discarding (or transferring responsibility for) the
// previous value immediately.
func (h *HazardArc[T]) Set(r arc.Ref[T]) {
	h.Replace(r).Release()
}

// CompareAndSet stores newRef if h currently holds the value current was
// observing, and reports whether it did so. On success the old value's drop
// responsibility is handled immediately (transferred or dropped) and the
// returned Ref is the zero Ref. On failure newRef is handed back unconsumed
// so the caller can retry or discard it.
func (h *HazardArc[T]) CompareAndSet(current *SharedArc[T], newRef arc.Ref[T]) (bool, arc.Ref[T]) {
	old := current.inner
	if atomic.CompareAndSwapPointer(&h.inner, old, newRef.Addr()) {
		dropRaw[T](old)
		return true, arc.Ref[T]{}
	}
	return false, newRef
}

// Close releases whatever value h currently holds. Call it when h itself is
// being discarded, mirroring running a destructor at end of scope.
func (h *HazardArc[T]) Close() {
	p := atomic.SwapPointer(&h.inner, nil)
	dropRaw[T](p)
}

// SharedArc is a read-only, hazard-protected observation of a HazardArc's
// value at some past instant. Release it when done; until then, the value
// it observed cannot be reclaimed even if the HazardArc itself has since
// been replaced.
type SharedArc[T any] struct {
	inner unsafe.Pointer // the observed Ref's header address, or nil
	slot  *unsafe.Pointer
	entry *hazard.Entry
}

// Valid reports whether the SharedArc observed an actual value, as opposed
// to an empty HazardArc.
func (s *SharedArc[T]) Valid() bool {
	return s.inner != nil
}

// Value returns the observed value without affecting any strong count.
func (s *SharedArc[T]) Value() T {
	var zero T
	if s.inner == nil {
		return zero
	}
	return arc.FromAddr[T](s.inner).Value()
}

// CloneRef returns an owned Ref to the observed value, incrementing its
// strong count. The caller must Release it independently of this SharedArc.
func (s *SharedArc[T]) CloneRef() arc.Ref[T] {
	if s.inner == nil {
		return arc.Ref[T]{}
	}
	return arc.FromAddr[T](s.inner).Clone()
}

// Release ends this observation. If this SharedArc's slot was the last
// hazard protecting its value and a concurrent writer had already replaced
// it, Release is what finally runs the value's destructor (possibly after
// handing responsibility to another reader first).
func (s *SharedArc[T]) Release() {
	if s.slot == nil {
		dropRaw[T](s.inner)
		return
	}

	prev := atomic.SwapPointer(s.slot, nil)
	if prev != s.inner {
		// Some writer's TryTransferDropResponsibility already zeroed our
		// slot and handed the obligation to us.
		dropRaw[T](s.inner)
	}
	if s.entry != nil {
		s.entry.Release()
	}
}

func dropRaw[T any](ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if !hazard.Default().TryTransferDropResponsibility(ptr) {
		arc.FromAddr[T](ptr).Release()
	}
}
