package arc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestRefDropsOnLastRelease(t *testing.T) {
	dropped := 0
	r := NewRef(5, func(int) { dropped++ })

	clone := r.Clone()
	assert.Equal(t, int64(2), r.StrongCount())

	r.Release()
	assert.Equal(t, 0, dropped)

	clone.Release()
	assert.Equal(t, 1, dropped)
}

func TestRefWithoutDestroy(t *testing.T) {
	r := NewRef("hello", nil)
	assert.Equal(t, "hello", r.Value())
	r.Release() // must not panic with a nil destroy
}

func TestRefAddrRoundTrips(t *testing.T) {
	r := NewRef(42, nil)
	addr := r.Addr()
	rebuilt := FromAddr[int](addr)
	assert.Equal(t, 42, rebuilt.Value())
}

func TestZeroRefIsInvalid(t *testing.T) {
	var r Ref[int]
	assert.False(t, r.Valid())
	assert.Equal(t, int64(0), r.StrongCount())
	r.Release() // must be a safe no-op
}

func TestRefExactlyOneDestroyUnderConcurrentRelease(t *testing.T) {
	const clones = 100

	var dropped int
	var mu sync.Mutex

	r := NewRef(1, func(int) {
		mu.Lock()
		dropped++
		mu.Unlock()
	})

	refs := make([]Ref[int], clones)
	for i := range refs {
		refs[i] = r.Clone()
	}

	var g errgroup.Group
	for i := range refs {
		ref := refs[i]
		g.Go(func() error {
			ref.Release()
			return nil
		})
	}
	_ = g.Wait()
	r.Release()
	assert.Equal(t, 1, dropped)
}
