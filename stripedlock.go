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
	"runtime"
	"sync/atomic"
	"time"
)

// numStripes is prime so that addresses from allocators that favor
// power-of-two strides don't all collide on the same stripe.
const numStripes = 499

const (
	startingBackoff = 50 * time.Microsecond
	maxBackoff      = 500 * time.Millisecond
	backoffFactor   = 2
)

// busySpins is the number of CAS attempts a stripe acquisition makes before
// it starts backing off; softSpins is how many more it makes with a growing
// sleep (the closest portable substitute for a hardware pause hint: Go
// exposes no PAUSE intrinsic to user code) before it falls back to
// runtime.Gosched.
const (
	busySpins = 5
	softSpins = 5
)

var stripes [numStripes]uint32

func stripeFor(addr uintptr) *uint32 {
	return &stripes[addr%numStripes]
}

// stripeGuard is held while a stripe is locked; Release must be called
// exactly once.
type stripeGuard struct {
	slot *uint32
}

func (g stripeGuard) Release() {
	atomic.StoreUint32(g.slot, 0)
}

// acquireStripe locks the stripe that covers addr, spinning and then backing
// off until it succeeds. addr is typically the address of the payload an
// AtomicCell[T] is guarding, not a pointer the caller may dereference.
func acquireStripe(addr uintptr) stripeGuard {
	slot := stripeFor(addr)
	backoff := startingBackoff

	for attempt := 0; !atomic.CompareAndSwapUint32(slot, 0, 1); attempt++ {
		switch {
		case attempt < busySpins:
			// busy-spin: retry immediately
		case attempt < busySpins+softSpins:
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= backoffFactor
			}
		default:
			runtime.Gosched()
		}
	}

	return stripeGuard{slot: slot}
}
