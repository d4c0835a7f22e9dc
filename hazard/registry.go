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

// Package hazard implements a process-wide hazard pointer registry: a
// growable set of Entries, each with a fixed number of hazard slots, that
// HazardArc readers publish into before dereferencing a shared pointer, and
// that a writer scans before reclaiming a value it has just replaced.
//
// Unlike the thread-local registries this design is drawn from, an Entry
// here is not bound to an OS thread for the life of the process: Go exposes
// no stable, enumerable per-goroutine identity to hang a thread_local-style
// registration on, and a goroutine that never returns its entry would leak
// one permanently in a long-running server that spawns many short-lived
// goroutines. Entries are instead claimed for the duration of an outstanding
// hazard observation (see Pin) and returned to the free list when that
// observation ends. Every invariant of the original design survives this
// change: an Entry is enumerable by a concurrent scan for exactly as long as
// a hazard slot inside it might protect a live value.
package hazard

import (
	"sync/atomic"
	"unsafe"
)

// slotsPerEntry mirrors the K=6 hazard slots per thread entry.
const slotsPerEntry = 6

// entriesPerSegment mirrors the N=32 entries per registry segment.
const entriesPerSegment = 32

// Entry is a claimable bundle of hazard slots. A goroutine (or, via Pin,
// several calls from the same goroutine) claims one, publishes pointers into
// its slots, and releases it back to the registry when done.
type Entry struct {
	slots [slotsPerEntry]unsafe.Pointer
	next  *Entry // overflow entry, allocated lazily if all slots fill up
	inUse uint32
}

// Slots exposes the fixed hazard-slot array for direct Load/Store/CAS by the
// atomic package, which publishes pointers with the platform-specific
// fence/CAS technique in fence_amd64.go / fence_generic.go.
func (e *Entry) Slots() *[slotsPerEntry]unsafe.Pointer {
	return &e.slots
}

// Next returns (allocating if necessary) the overflow entry chained off e,
// used once every slot in e is in use by the same claim.
func (e *Entry) Next() *Entry {
	next := (*Entry)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&e.next))))
	if next != nil {
		return next
	}
	fresh := &Entry{}
	if atomic.CompareAndSwapPointer(
		(*unsafe.Pointer)(unsafe.Pointer(&e.next)), nil, unsafe.Pointer(fresh),
	) {
		return fresh
	}
	return (*Entry)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&e.next))))
}

// Release returns e (and its whole overflow chain) to the free list.
func (e *Entry) Release() {
	for s := range e.slots {
		atomic.StorePointer(&e.slots[s], nil)
	}
	if next := (*Entry)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&e.next)))); next != nil {
		next.Release()
	}
	atomic.StoreUint32(&e.inUse, 0)
}

// TryTransferDropResponsibility scans e's slots (and overflow chain) for ptr
// and, if found, CASes that slot to nil so no other scan can claim the same
// transfer. It reports whether the transfer happened. A plain store(nil)
// here would race two concurrent scans into both believing they'd claimed
// responsibility for the same pointer, double-running its destructor; CAS
// makes exactly one scan win.
func (e *Entry) TryTransferDropResponsibility(ptr unsafe.Pointer) bool {
	for i := range e.slots {
		if atomic.LoadPointer(&e.slots[i]) == ptr {
			if atomic.CompareAndSwapPointer(&e.slots[i], ptr, nil) {
				return true
			}
		}
	}
	if next := (*Entry)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&e.next)))); next != nil {
		return next.TryTransferDropResponsibility(ptr)
	}
	return false
}

type segment struct {
	entries [entriesPerSegment]Entry
	next    unsafe.Pointer // *segment
}

// Registry is the process-wide (or, for tests, scoped) collection of
// segments. The zero Registry is usable; Default returns the shared instance
// HazardArc uses unless a caller builds its own for isolation in tests.
type Registry struct {
	head unsafe.Pointer // *segment
}

var defaultRegistry Registry

// Default returns the process-wide registry HazardArc uses.
func Default() *Registry { return &defaultRegistry }

// NewRegistry returns an empty, independent registry — primarily useful for
// tests that want to assert on a registry's state without interference from
// other tests running in the same process.
func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) firstSegment() *segment {
	seg := (*segment)(atomic.LoadPointer(&r.head))
	if seg != nil {
		return seg
	}
	fresh := &segment{}
	if atomic.CompareAndSwapPointer(&r.head, nil, unsafe.Pointer(fresh)) {
		return fresh
	}
	return (*segment)(atomic.LoadPointer(&r.head))
}

// Claim finds (allocating a new segment if every existing one is full) a
// free Entry and marks it in use.
func (r *Registry) Claim() *Entry {
	seg := r.firstSegment()
	for {
		for i := range seg.entries {
			e := &seg.entries[i]
			if atomic.LoadUint32(&e.inUse) == 0 {
				if atomic.CompareAndSwapUint32(&e.inUse, 0, 1) {
					return e
				}
			}
		}
		next := (*segment)(atomic.LoadPointer(&seg.next))
		if next == nil {
			fresh := &segment{}
			if atomic.CompareAndSwapPointer(&seg.next, nil, unsafe.Pointer(fresh)) {
				next = fresh
			} else {
				next = (*segment)(atomic.LoadPointer(&seg.next))
			}
		}
		seg = next
	}
}

// TryTransferDropResponsibility scans every claimed entry across every
// segment for ptr, handing off the obligation to run its destructor to
// whichever entry's slot held it. It reports whether any entry claimed it;
// if not, the caller (the writer that just replaced ptr) must run the
// destructor itself. Every slot read below is a sequentially consistent
// atomic load, so no reader's just-published hazard can be missed.
func (r *Registry) TryTransferDropResponsibility(ptr unsafe.Pointer) bool {
	for seg := (*segment)(atomic.LoadPointer(&r.head)); seg != nil; seg = (*segment)(atomic.LoadPointer(&seg.next)) {
		for i := range seg.entries {
			e := &seg.entries[i]
			if atomic.LoadUint32(&e.inUse) == 1 {
				if e.TryTransferDropResponsibility(ptr) {
					return true
				}
			}
		}
	}
	return false
}
