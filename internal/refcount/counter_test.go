package refcount

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIncDec(t *testing.T) {
	c := New(0)
	require.EqualValues(t, 1, c.Inc())
	require.EqualValues(t, 2, c.Inc())
	require.EqualValues(t, 1, c.Dec())
	require.EqualValues(t, 1, c.Get())
}

func TestCounterDecReturnsNewValue(t *testing.T) {
	c := New(1)
	assert.EqualValues(t, 0, c.Dec())
}

func TestCounterConcurrentInc(t *testing.T) {
	c := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, c.Get())
}
