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

package hazard

// Pin is an explicit, caller-held claim on an Entry. A goroutine that will
// make several HazardArc.Get calls in a row can Pin once and pass the Pin to
// each of them, amortizing the cost of walking the registry to find a free
// Entry across all of them, instead of claiming and releasing on every call.
type Pin struct {
	entry *Entry
}

// PinOn claims a fresh Entry from r.
func PinOn(r *Registry) *Pin {
	return &Pin{entry: r.Claim()}
}

// Entry returns the claimed Entry so callers in this module can publish
// into its slots.
func (p *Pin) Entry() *Entry { return p.entry }

// Release returns the claimed Entry (and any overflow chain it grew) to r's
// free list. Release must not be called while any SharedArc obtained
// through this Pin is still outstanding.
func (p *Pin) Release() {
	if p.entry != nil {
		p.entry.Release()
		p.entry = nil
	}
}
