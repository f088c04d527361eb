package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "census/pkg/domain"
)

func TestMemoryAllocator(t *testing.T) {
	ctx := context.Background()

	t.Run("starts at one and increases", func(t *testing.T) {
		a := NewMemoryAllocator()
		first, err := a.NextImportID(ctx)
		require.NoError(t, err)
		second, err := a.NextImportID(ctx)
		require.NoError(t, err)
		assert.Equal(t, id.ImportID(1), first)
		assert.Equal(t, id.ImportID(2), second)
	})

	t.Run("never hands out the same id twice", func(t *testing.T) {
		a := NewMemoryAllocator()
		const callers = 64

		var wg sync.WaitGroup
		got := make(chan id.ImportID, callers)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := a.NextImportID(ctx)
				assert.NoError(t, err)
				got <- v
			}()
		}
		wg.Wait()
		close(got)

		seen := make(map[id.ImportID]struct{}, callers)
		for v := range got {
			assert.NotContains(t, seen, v)
			seen[v] = struct{}{}
			assert.True(t, v >= 1 && v <= callers)
		}
		assert.Len(t, seen, callers)
	})

	t.Run("reset restarts at one", func(t *testing.T) {
		a := NewMemoryAllocator()
		_, _ = a.NextImportID(ctx)
		require.NoError(t, a.Reset(ctx))
		v, err := a.NextImportID(ctx)
		require.NoError(t, err)
		assert.Equal(t, id.ImportID(1), v)
	})
}
