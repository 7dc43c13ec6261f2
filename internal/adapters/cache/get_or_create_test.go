package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateBasic(t *testing.T) {
	ctx := context.Background()

	t.Run("create is called on miss", func(t *testing.T) {
		c := NewBasicCache[string]()

		calls := 0
		data, created, err := GetOrCreate(ctx, c, "key", func() (string, error) {
			calls++
			return "value", nil
		})
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "value", data)
		require.Equal(t, 1, calls)
	})

	t.Run("second call is a hit", func(t *testing.T) {
		c := NewBasicCache[string]()

		_, _, err := GetOrCreate(ctx, c, "key", func() (string, error) {
			return "value", nil
		})
		require.NoError(t, err)

		data, created, err := GetOrCreate(ctx, c, "key", func() (string, error) {
			t.Fatal("create called on cache hit")
			return "", nil
		})
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, "value", data)
	})

	t.Run("failed create is not cached", func(t *testing.T) {
		c := NewBasicCache[string]()

		_, _, err := GetOrCreate(ctx, c, "key", func() (string, error) {
			return "", fmt.Errorf("upstream failed")
		})
		require.Error(t, err)

		// The claim must be cleaned up so the next caller can retry
		data, created, err := GetOrCreate(ctx, c, "key", func() (string, error) {
			return "value", nil
		})
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "value", data)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		c := NewBasicCache[string]()

		for _, key := range []string{"a", "b", "c"} {
			data, created, err := GetOrCreate(ctx, c, key, func() (string, error) {
				return "value-" + key, nil
			})
			require.NoError(t, err)
			require.True(t, created)
			require.Equal(t, "value-"+key, data)
		}
	})
}

func TestGetOrCreateSingleFlight(t *testing.T) {
	ctx := context.Background()
	c := NewBasicCache[string]()

	const goroutines = 16

	var mu sync.Mutex
	calls := 0

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			data, _, err := GetOrCreate(ctx, c, "key", func() (string, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return "value", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "value", data)
		}()
	}

	close(start)
	wg.Wait()

	require.Equal(t, 1, calls, "create should run exactly once for concurrent callers")
}
