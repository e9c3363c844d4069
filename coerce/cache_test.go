package coerce

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoercerCachesResults(t *testing.T) {
	c := NewCoercer(16)

	v1, err := c.Coerce("42", TypeInteger)
	require.NoError(t, err)
	v2, err := c.Coerce("42", TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestCoercerCachesFailures(t *testing.T) {
	c := NewCoercer(16)

	_, err1 := c.Coerce("maybe", TypeBoolean)
	require.Error(t, err1)
	_, err2 := c.Coerce("maybe", TypeBoolean)
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())

	hits, _ := c.Stats()
	assert.Equal(t, uint64(1), hits)
}

func TestCoercerBoundedSize(t *testing.T) {
	c := NewCoercer(8)
	for i := 0; i < 100; i++ {
		_, err := c.Coerce(fmt.Sprintf("%d", i), TypeInteger)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(), 8)
}

func TestCoercerEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCoercer(2)

	_, _ = c.Coerce("1", TypeInteger)
	_, _ = c.Coerce("2", TypeInteger)
	_, _ = c.Coerce("1", TypeInteger) // refresh "1"
	_, _ = c.Coerce("3", TypeInteger) // evicts "2"

	_, _ = c.Coerce("1", TypeInteger) // hit
	hits, _ := c.Stats()
	assert.Equal(t, uint64(2), hits)

	_, _ = c.Coerce("2", TypeInteger) // miss, was evicted
	hits2, _ := c.Stats()
	assert.Equal(t, hits, hits2)
}

func TestCoercerCountersSumToCalls(t *testing.T) {
	c := NewCoercer(4)
	calls := 0
	for i := 0; i < 10; i++ {
		_, _ = c.Coerce(i%3, TypeNumber)
		calls++
	}
	// Container values bypass the cache but still count as misses.
	_, _ = c.Coerce([]any{1}, TypeArray)
	calls++

	hits, misses := c.Stats()
	assert.Equal(t, uint64(calls), hits+misses)
}

func TestCoercerConcurrentAccess(t *testing.T) {
	c := NewCoercer(32)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = c.Coerce(fmt.Sprintf("%d", (seed+i)%50), TypeInteger)
				_, _ = c.Coerce("yes", TypeBoolean)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 32)
	hits, misses := c.Stats()
	assert.Equal(t, uint64(8*400), hits+misses)
}
