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

//go:build amd64 || 386

package atomic

import (
	"sync/atomic"
	"unsafe"
)

// publishSlot makes p observable in a freshly-allocated hazard slot (which is
// always nil before first use). On x86, a lock cmpxchg against the slot's
// expected nil value has been measured, in the crate this algorithm is drawn
// from, to be cheaper than a separate store-then-fence, so that is what this
// build uses to publish. The slot is always nil going in, so the CAS always
// succeeds; its outcome is not inspected.
func publishSlot(slot *unsafe.Pointer, p unsafe.Pointer) {
	atomic.CompareAndSwapPointer(slot, nil, p)
}
