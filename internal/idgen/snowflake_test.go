package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeValidatesNode(t *testing.T) {
	_, err := NewSnowflake(-1, 0)
	require.Error(t, err)

	_, err = NewSnowflake(1024, 0)
	require.Error(t, err)

	g, err := NewSnowflake(1023, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultEpoch, g.epoch)
}

func TestSnowflakeMonotonic(t *testing.T) {
	g, err := NewSnowflake(3, 0)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 10000; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		require.Greater(t, id, last)
		require.Equal(t, int64(3), Node(id))
		last = id
	}
}

func TestSnowflakeSequenceRollover(t *testing.T) {
	g, err := NewSnowflake(1, 0)
	require.NoError(t, err)

	clock := DefaultEpoch + 1000
	calls := 0
	g.now = func() int64 {
		calls++
		// the clock advances only after the sequence for this ms is exhausted
		if calls > maxSequence+2 {
			return clock + 1
		}
		return clock
	}

	seen := make(map[int64]struct{})
	for i := 0; i < maxSequence+2; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
	require.Equal(t, clock+1, g.lastTime)
}

func TestSnowflakeClockBackwards(t *testing.T) {
	g, err := NewSnowflake(1, 0)
	require.NoError(t, err)

	clock := DefaultEpoch + 5000
	g.now = func() int64 { return clock }

	_, err = g.NextID()
	require.NoError(t, err)

	clock -= 10
	_, err = g.NextID()
	require.ErrorIs(t, err, ErrClockBackwards)
}

func TestSnowflakeTime(t *testing.T) {
	g, err := NewSnowflake(1, 0)
	require.NoError(t, err)

	clock := DefaultEpoch + 123456
	g.now = func() int64 { return clock }

	id, err := g.NextID()
	require.NoError(t, err)
	require.Equal(t, clock, g.Time(id).UnixMilli())
}

func TestSnowflakeConcurrentUnique(t *testing.T) {
	g, err := NewSnowflake(9, 0)
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		ids = make(map[int64]struct{})
		wg  sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id, err := g.NextID()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, ids, 4000)
}
