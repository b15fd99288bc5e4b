package service

import (
	"sync"
	"sync/atomic"
)

// LockRegistry hands out one mutex per key. The first caller for a key
// creates the mutex; every later caller, concurrent or not, gets the same
// instance. Entries live as long as the registry.
type LockRegistry struct {
	locks sync.Map // string -> *sync.Mutex
	size  atomic.Int64
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{}
}

// GetLock returns the mutex for key, creating it on first use.
func (r *LockRegistry) GetLock(key string) *sync.Mutex {
	if mu, ok := r.locks.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, loaded := r.locks.LoadOrStore(key, new(sync.Mutex))
	if !loaded {
		r.size.Add(1)
	}
	return mu.(*sync.Mutex)
}

// Len returns the number of keys that have a mutex.
func (r *LockRegistry) Len() int {
	return int(r.size.Load())
}
