package job

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_SingleWinnerUnderContention(t *testing.T) {
	var slot Slot
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if slot.TryAcquire(New([]string{"true"})) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "Exactly one acquirer should win the slot")
	assert.NotNil(t, slot.Active())
}

func TestSlot_ReleaseAllowsReacquire(t *testing.T) {
	var slot Slot

	first := New([]string{"true"})
	require.True(t, slot.TryAcquire(first))
	require.False(t, slot.TryAcquire(New([]string{"false"})), "Occupied slot must reject a second job")

	slot.Release()
	assert.Nil(t, slot.Active())

	second := New([]string{"false"})
	assert.True(t, slot.TryAcquire(second), "Released slot should accept a new job")
	assert.Same(t, second, slot.Active())
}

func TestSlot_ReleaseWhenEmptyIsHarmless(t *testing.T) {
	var slot Slot
	slot.Release()
	assert.Nil(t, slot.Active())
	assert.True(t, slot.TryAcquire(New([]string{"true"})))
}
