// ABOUTME: Tests for the TTL seen-cache
// ABOUTME: Covers atomic check-and-mark, expiry, and size-bounded eviction

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTL_CheckAndMark(t *testing.T) {
	c := NewTTL(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Check("key-1"))
	assert.False(t, c.CheckAndMark("key-1"), "first mark is not a duplicate")
	assert.True(t, c.CheckAndMark("key-1"), "second mark is a duplicate")
	assert.True(t, c.Check("key-1"))
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL(20*time.Millisecond, 100)
	defer c.Close()

	c.Mark("key-1")
	assert.True(t, c.Check("key-1"))

	time.Sleep(40 * time.Millisecond)
	assert.False(t, c.Check("key-1"))
	assert.False(t, c.CheckAndMark("key-1"), "expired entry can be re-marked")
}

func TestTTL_Eviction(t *testing.T) {
	c := NewTTL(time.Minute, 3)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Mark(fmt.Sprintf("key-%d", i))
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Check("key-0"), "oldest evicted")
	assert.False(t, c.Check("key-1"))
	assert.True(t, c.Check("key-4"))
}

func TestTTL_ConcurrentCheckAndMark(t *testing.T) {
	c := NewTTL(time.Minute, 100)
	defer c.Close()

	const workers = 16
	var wg sync.WaitGroup
	firsts := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("contested") {
				firsts <- true
			}
		}()
	}
	wg.Wait()
	close(firsts)

	assert.Len(t, firsts, 1, "exactly one goroutine wins the mark")
}

func TestTTL_CloseIdempotent(t *testing.T) {
	c := NewTTL(time.Minute, 10)
	c.Close()
	c.Close()
}
