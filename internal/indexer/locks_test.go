package indexer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPathLocks_SerializesSamePath(t *testing.T) {
	locks := newPathLocks()
	var inFlight int32
	var maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("a.go")
			defer release()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxInFlight)
				if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight)
}

func TestPathLocks_DifferentPathsRunConcurrently(t *testing.T) {
	locks := newPathLocks()
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make(chan time.Duration, 2)

	for _, p := range []string{"a.go", "b.go"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			<-start
			begin := time.Now()
			release := locks.acquire(path)
			defer release()
			time.Sleep(20 * time.Millisecond)
			results <- time.Since(begin)
		}(p)
	}
	close(start)
	wg.Wait()
	close(results)

	for d := range results {
		assert.Less(t, d, 60*time.Millisecond)
	}
}

func TestPathLocks_MapShrinksAfterRelease(t *testing.T) {
	locks := newPathLocks()
	release := locks.acquire("a.go")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Len(t, locks.entries, 0)
}
