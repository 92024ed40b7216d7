package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounter(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	n, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Incr(ctx, "k")
		}()
	}
	wg.Wait()

	n, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)
}
