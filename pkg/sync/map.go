package sync

import "sync"

// KeySet is a concurrent set of comparable keys. It backs the scan
// orchestrator's in-flight path guard, where membership is claimed and
// released from both the watcher goroutine and forced re-scans.
type KeySet[K comparable] struct {
	m sync.Map
}

// TryAdd claims key for the caller, returning false if some other
// caller already holds it.
func (set *KeySet[K]) TryAdd(key K) bool {
	_, loaded := set.m.LoadOrStore(key, struct{}{})
	return !loaded
}

func (set *KeySet[K]) Remove(key K) { set.m.Delete(key) }
