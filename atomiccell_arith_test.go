package atomic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAddSub(t *testing.T) {
	c := New(int32(10))
	assert.Equal(t, int32(15), Add(c, int32(5)))
	assert.Equal(t, int32(12), Sub(c, int32(3)))
}

func TestAddWrapsOnOverflow(t *testing.T) {
	c := New(uint32(math.MaxUint32))
	assert.Equal(t, uint32(0), Add(c, uint32(1)))
}

func TestAddOnLockedFallback(t *testing.T) {
	c := New(uint16(250))
	assert.False(t, IsLockFree[uint16]())
	assert.Equal(t, uint16(255), Add(c, uint16(5)))
}

func TestAddUnderContention(t *testing.T) {
	const goroutines = 32
	const perGoroutine = 2000

	c := New(int64(0))
	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < perGoroutine; j++ {
				Add(c, int64(1))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(goroutines*perGoroutine), c.Get())
}
