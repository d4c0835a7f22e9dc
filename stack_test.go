package atomic

import (
	syncatomic "sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// treiberStack is a Treiber stack built directly on AtomicCell[*node], kept
// as an internal test fixture rather than a public type: it exists only to
// exercise AtomicCell's pointer-payload fast path and CompareAndSet retry
// loop under realistic concurrent push/pop traffic, the way the crate this
// package is grounded on demonstrates AtomicCell with a hand-rolled stack
// example rather than shipping one as part of its public API.
type node struct {
	value int
	next  *node
}

type treiberStack struct {
	top *AtomicCell[*node]
}

func newTreiberStack() *treiberStack {
	return &treiberStack{top: New[*node](nil)}
}

func (s *treiberStack) push(v int) {
	n := &node{value: v}
	for {
		top := s.top.Get()
		n.next = top
		if CompareAndSet(s.top, top, n) {
			return
		}
	}
}

func (s *treiberStack) pop() (int, bool) {
	for {
		top := s.top.Get()
		if top == nil {
			return 0, false
		}
		if CompareAndSet(s.top, top, top.next) {
			return top.value, true
		}
	}
}

func TestTreiberStackSerialLIFO(t *testing.T) {
	s := newTreiberStack()
	s.push(1)
	s.push(2)
	s.push(3)

	v, ok := s.pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = s.pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = s.pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = s.pop()
	assert.False(t, ok)
}

// Every pushed value must be popped exactly once under concurrent
// push/pop traffic: no lost updates, no duplicate pops.
func TestTreiberStackConcurrentPushPopConservesCount(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 2000

	s := newTreiberStack()

	var popped int64
	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < perGoroutine; j++ {
				s.push(j)
				if _, ok := s.pop(); ok {
					syncatomic.AddInt64(&popped, 1)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for {
		if _, ok := s.pop(); !ok {
			break
		}
		popped++
	}
	assert.Equal(t, int64(goroutines*perGoroutine), popped)
}
