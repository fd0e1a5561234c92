package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

const (
	hashA = "08ada5a7a6183aae1e09d831df6748d566095a10"
	hashB = "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestGetMissAndHit(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get(types.ProviderRealDebrid, hashA)
	assert.False(t, ok)

	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{
		hashA: {Files: []types.AvailabilityFile{{ID: "1", Name: "movie.mkv"}}},
	})

	rec, ok := c.Get(types.ProviderRealDebrid, hashA)
	require.True(t, ok)
	assert.Equal(t, types.ProviderRealDebrid, rec.Provider)
	assert.Equal(t, hashA, rec.Hash)
	assert.False(t, rec.Expiry.IsZero())

	// Same hash on another provider is a separate record.
	_, ok = c.Get(types.ProviderAllDebrid, hashA)
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	start := time.Now()
	c.SetClock(fixedClock(start))

	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{hashA: {}})

	_, ok := c.Get(types.ProviderRealDebrid, hashA)
	assert.True(t, ok)

	c.SetClock(fixedClock(start.Add(2 * time.Minute)))
	_, ok = c.Get(types.ProviderRealDebrid, hashA)
	assert.False(t, ok)
	// Expired records linger until a partition evicts them.
	assert.Equal(t, 1, c.Len())
}

func TestMergeReplacesWhole(t *testing.T) {
	c := New(time.Minute)

	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{
		hashA: {Files: []types.AvailabilityFile{{ID: "1"}, {ID: "2"}}},
	})
	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{
		hashA: {Files: []types.AvailabilityFile{{ID: "3"}}},
	})

	rec, ok := c.Get(types.ProviderRealDebrid, hashA)
	require.True(t, ok)
	require.Len(t, rec.Files, 1)
	assert.Equal(t, "3", rec.Files[0].ID)
}

func TestMergeIsAdditivePerProvider(t *testing.T) {
	c := New(time.Minute)

	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{hashA: {}})
	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{hashB: {}})

	_, okA := c.Get(types.ProviderRealDebrid, hashA)
	_, okB := c.Get(types.ProviderRealDebrid, hashB)
	assert.True(t, okA)
	assert.True(t, okB)
}

func TestPartition(t *testing.T) {
	c := New(time.Minute)
	start := time.Now()
	c.SetClock(fixedClock(start))

	candidates := []types.Magnet{{Hash: hashA}, {Hash: hashB}}
	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{hashA: {}})

	fresh, needsLookup := c.Partition(types.ProviderRealDebrid, candidates)
	require.Len(t, fresh, 1)
	require.Len(t, needsLookup, 1)
	assert.Equal(t, hashA, fresh[0].Hash)
	assert.Equal(t, hashB, needsLookup[0].Hash)

	// After expiry everything needs a lookup and the stale record is evicted.
	c.SetClock(fixedClock(start.Add(2 * time.Minute)))
	fresh, needsLookup = c.Partition(types.ProviderRealDebrid, candidates)
	assert.Empty(t, fresh)
	assert.Len(t, needsLookup, 2)
	assert.Equal(t, 0, c.Len())
}

func TestEvict(t *testing.T) {
	c := New(time.Minute)
	c.MergeBatch(types.ProviderRealDebrid, map[string]types.AvailabilityRecord{hashA: {}})
	c.Evict(types.ProviderRealDebrid, hashA)
	_, ok := c.Get(types.ProviderRealDebrid, hashA)
	assert.False(t, ok)
}
