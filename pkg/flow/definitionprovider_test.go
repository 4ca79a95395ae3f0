package flow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefinitionCache_RegisterAndGet(t *testing.T) {
	cache := NewDefinitionCache()
	def, err := NewFlowDefinitionBuilder("approval").
		InitialStep("review").
		StepEndOfFlow("review", "finish").
		Build()
	require.NoError(t, err)

	require.NoError(t, cache.Register(def))

	got, err := cache.Get("approval")
	require.NoError(t, err)
	require.Equal(t, def.ID, got.ID)
}

func TestDefinitionCache_WriteOnce(t *testing.T) {
	cache := NewDefinitionCache()
	def, err := NewFlowDefinitionBuilder("approval").
		InitialStep("review").
		StepEndOfFlow("review", "finish").
		Build()
	require.NoError(t, err)

	require.NoError(t, cache.Register(def))
	err = cache.Register(def)
	require.Error(t, err)
	_, ok := IsDefinitionError(err)
	require.True(t, ok)
}

func TestDefinitionCache_GetUnknown(t *testing.T) {
	cache := NewDefinitionCache()
	_, err := cache.Get("missing")
	require.Error(t, err)
}

func TestDefinitionCache_ConcurrentReads(t *testing.T) {
	cache := NewDefinitionCache()
	def, err := NewFlowDefinitionBuilder("approval").
		InitialStep("review").
		StepEndOfFlow("review", "finish").
		Build()
	require.NoError(t, err)
	require.NoError(t, cache.Register(def))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get("approval")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
}
