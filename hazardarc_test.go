package atomic

import (
	"sync"
	syncatomic "sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/filipdulic/atomic/arc"
	"github.com/filipdulic/atomic/hazard"
)

type resource struct {
	id int
}

func TestHazardArcGetObservesCurrentValue(t *testing.T) {
	h := NewHazardArc(arc.NewRef(resource{id: 1}, nil))
	s := h.Get()
	defer s.Release()

	assert.True(t, s.Valid())
	assert.Equal(t, 1, s.Value().id)
}

func TestHazardArcReplaceReturnsPrevious(t *testing.T) {
	var dropped []int
	var mu sync.Mutex
	onDrop := func(r resource) {
		mu.Lock()
		dropped = append(dropped, r.id)
		mu.Unlock()
	}

	h := NewHazardArc(arc.NewRef(resource{id: 1}, onDrop))
	prev := h.Replace(arc.NewRef(resource{id: 2}, onDrop))

	assert.Equal(t, 1, prev.Value().id)
	prev.Release()

	mu.Lock()
	assert.Equal(t, []int{1}, dropped)
	mu.Unlock()

	s := h.Get()
	defer s.Release()
	assert.Equal(t, 2, s.Value().id)
}

// A reader's Get must keep the old value alive until it releases, even if
// the writer replaces the HazardArc's value in the meantime.
func TestHazardArcReaderOutlivesReplace(t *testing.T) {
	var dropped []int
	var mu sync.Mutex
	onDrop := func(r resource) {
		mu.Lock()
		dropped = append(dropped, r.id)
		mu.Unlock()
	}

	h := NewHazardArc(arc.NewRef(resource{id: 1}, onDrop))

	reader := h.Get()
	assert.Equal(t, 1, reader.Value().id)

	prev := h.Replace(arc.NewRef(resource{id: 2}, onDrop))
	prev.Release() // the writer's own handle; the reader still protects id 1

	mu.Lock()
	assert.Empty(t, dropped, "reader's hazard should have blocked the drop")
	mu.Unlock()

	reader.Release()

	mu.Lock()
	assert.Equal(t, []int{1}, dropped)
	mu.Unlock()
}

func TestHazardArcCompareAndSet(t *testing.T) {
	h := NewHazardArc(arc.NewRef(resource{id: 1}, nil))
	stale := h.Get()
	defer stale.Release()

	h.Replace(arc.NewRef(resource{id: 2}, nil)).Release()

	ok, rejected := h.CompareAndSet(stale, arc.NewRef(resource{id: 3}, nil))
	assert.False(t, ok)
	assert.Equal(t, 3, rejected.Value().id)

	current := h.Get()
	defer current.Release()

	ok, rejected2 := h.CompareAndSet(current, arc.NewRef(resource{id: 4}, nil))
	assert.True(t, ok)
	assert.False(t, rejected2.Valid())

	s := h.Get()
	defer s.Release()
	assert.Equal(t, 4, s.Value().id)
}

func TestHazardArcCloneRefIncrementsStrongCount(t *testing.T) {
	ref := arc.NewRef(resource{id: 1}, nil)
	h := NewHazardArc(ref)

	s := h.Get()
	owned := s.CloneRef()
	s.Release()

	assert.Equal(t, int64(2), ref.StrongCount())
	owned.Release()
	assert.Equal(t, int64(1), ref.StrongCount())
}

func TestHazardArcPinAmortizesClaims(t *testing.T) {
	h := NewHazardArc(arc.NewRef(resource{id: 1}, nil))
	pin := hazard.PinOn(hazard.Default())
	defer pin.Release()

	a := h.GetPinned(pin)
	b := h.GetPinned(pin)
	defer a.Release()
	defer b.Release()

	assert.Equal(t, 1, a.Value().id)
	assert.Equal(t, 1, b.Value().id)
}

func TestHazardArcCloseDropsResident(t *testing.T) {
	dropped := false
	h := NewHazardArc(arc.NewRef(resource{id: 1}, func(resource) { dropped = true }))
	h.Close()
	assert.True(t, dropped)
}

// Exactly one destructor call per value ever stored (the initial value plus
// one per Replace), no more and no fewer, under heavy concurrent
// replace/get/release traffic.
func TestHazardArcExactDestructorCount(t *testing.T) {
	const goroutines = 16
	const opsPerGoroutine = 500

	var dropCount int64
	onDrop := func(resource) { syncatomic.AddInt64(&dropCount, 1) }

	h := NewHazardArc(arc.NewRef(resource{id: 0}, onDrop))

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < opsPerGoroutine; j++ {
				r := h.Get()
				_ = r.Value()
				r.Release()

				if j%10 == 0 {
					old := h.Replace(arc.NewRef(resource{id: i*opsPerGoroutine + j}, onDrop))
					old.Release()
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	final := h.IntoInner()
	final.Release()

	// One drop per value ever evicted by Replace, plus the one still
	// resident at the end, released above via IntoInner/Release:
	// deterministic given the fixed goroutines/opsPerGoroutine/replace
	// cadence above, so the count must land exactly here — not merely "some
	// drops happened" — to catch both lost drops (a leak) and double drops.
	wantDrops := int64(1 + goroutines*(opsPerGoroutine/10))
	assert.Equal(t, wantDrops, syncatomic.LoadInt64(&dropCount))
}
