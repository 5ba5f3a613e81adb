package simple

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIDIsSequential(t *testing.T) {
	g := New("b-")

	first, err := g.GetID(context.Background())
	require.NoError(t, err)
	second, err := g.GetID(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "b-1", first)
	assert.Equal(t, "b-2", second)
}

func TestGetIDIsUniqueUnderConcurrency(t *testing.T) {
	g := New("")
	seen := sync.Map{}

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, _ := g.GetID(context.Background())
			_, loaded := seen.LoadOrStore(id, struct{}{})
			assert.False(t, loaded)
		}()
	}

	wg.Wait()
}
