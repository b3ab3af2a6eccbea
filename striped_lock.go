package id

import (
	"hash/fnv"
	"sync"
)

// StripedLocks spreads per-key locking over a fixed set of mutexes. The same
// key always maps to the same stripe; unrelated keys rarely share one.
type StripedLocks struct {
	stripes []sync.RWMutex
}

// NewStripedLocks creates stripeCount stripes, 32 if stripeCount is not
// positive.
func NewStripedLocks(stripeCount int) *StripedLocks {
	if stripeCount <= 0 {
		stripeCount = 32
	}
	return &StripedLocks{stripes: make([]sync.RWMutex, stripeCount)}
}

// Lock takes the key's stripe exclusively and returns its unlock func.
func (sl *StripedLocks) Lock(key string) func() {
	m := sl.stripe(key)
	m.Lock()
	return m.Unlock
}

// RLock takes the key's stripe shared and returns its unlock func.
func (sl *StripedLocks) RLock(key string) func() {
	m := sl.stripe(key)
	m.RLock()
	return m.RUnlock
}

func (sl *StripedLocks) stripe(key string) *sync.RWMutex {
	return &sl.stripes[sl.index(key)]
}

// index hashes key with FNV-1a.
func (sl *StripedLocks) index(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % uint32(len(sl.stripes))
}
