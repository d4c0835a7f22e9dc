package hazard

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimReturnsDistinctEntries(t *testing.T) {
	r := NewRegistry()
	a := r.Claim()
	b := r.Claim()
	assert.NotSame(t, a, b)
}

func TestClaimReusesReleasedEntry(t *testing.T) {
	r := NewRegistry()
	a := r.Claim()
	a.Release()
	b := r.Claim()
	assert.Same(t, a, b)
}

func TestClaimGrowsBeyondOneSegment(t *testing.T) {
	r := NewRegistry()
	claimed := make([]*Entry, entriesPerSegment+5)
	for i := range claimed {
		claimed[i] = r.Claim()
	}
	seen := map[*Entry]bool{}
	for _, e := range claimed {
		require.False(t, seen[e], "Claim must never hand out the same Entry twice")
		seen[e] = true
	}
}

func TestAllocateOverflowEntryOnFullSlots(t *testing.T) {
	r := NewRegistry()
	e := r.Claim()
	slots := e.Slots()
	for i := range slots {
		slots[i] = unsafe.Pointer(&i)
	}
	overflow := e.Next()
	assert.NotNil(t, overflow)
	assert.Same(t, overflow, e.Next())
}

func TestTryTransferDropResponsibilityCASSemantics(t *testing.T) {
	r := NewRegistry()
	e := r.Claim()

	var x int
	p := unsafe.Pointer(&x)
	e.Slots()[0] = p

	ok := r.TryTransferDropResponsibility(p)
	assert.True(t, ok)
	assert.Nil(t, e.Slots()[0])

	// A second attempt against the same (now-cleared) pointer must fail:
	// nobody's slot holds it any more, so nobody can win the transfer twice.
	ok = r.TryTransferDropResponsibility(p)
	assert.False(t, ok)
}

func TestTryTransferDropResponsibilityMisses(t *testing.T) {
	r := NewRegistry()
	r.Claim()

	var x int
	ok := r.TryTransferDropResponsibility(unsafe.Pointer(&x))
	assert.False(t, ok)
}

func TestPinReleaseReturnsEntryToRegistry(t *testing.T) {
	r := NewRegistry()
	p := PinOn(r)
	e := p.Entry()
	p.Release()

	reclaimed := r.Claim()
	assert.Same(t, e, reclaimed)
}

func TestDefaultRegistryIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
