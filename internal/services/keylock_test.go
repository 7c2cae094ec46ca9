package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	kl := NewKeyLock()

	const goroutines = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock("user-1|spam")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestKeyLockUnlockAllowsRelock(t *testing.T) {
	kl := NewKeyLock()

	unlock := kl.Lock("key")
	unlock()

	done := make(chan struct{})
	go func() {
		unlock := kl.Lock("key")
		unlock()
		close(done)
	}()
	<-done
}
