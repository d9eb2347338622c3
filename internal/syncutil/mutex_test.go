package syncutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutex_SerializesAccess(t *testing.T) {
	t.Parallel()

	var mu Mutex

	counter := 0

	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)

	for range n {
		go func() {
			defer wg.Done()

			mu.Lock()
			defer mu.Unlock()

			counter++
		}()
	}

	wg.Wait()

	assert.Equal(t, n, counter)
}
