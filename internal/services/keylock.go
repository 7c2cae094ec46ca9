package services

import (
	"hash/fnv"
	"sync"
)

const keyLockShards = 64

// KeyLock serializes work per string key with a fixed set of striped
// mutexes. Report evaluation locks on (reported user, violation type) so
// two concurrent reports cannot both pass the live-warning check and
// each decide a warning when one of them should have escalated.
type KeyLock struct {
	shards [keyLockShards]sync.Mutex
}

func NewKeyLock() *KeyLock {
	return &KeyLock{}
}

func (kl *KeyLock) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &kl.shards[h.Sum32()%keyLockShards]
}

// Lock acquires the shard for key and returns the unlock function.
func (kl *KeyLock) Lock(key string) func() {
	mu := kl.shard(key)
	mu.Lock()
	return mu.Unlock
}
