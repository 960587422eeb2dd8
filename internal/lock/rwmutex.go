// Package lock provides a deadlock-checked RWMutex used to guard the
// scheduler's shared result slice and the progress sink's aggregate
// counters, which are written concurrently by slot-worker goroutines.
package lock

import deadlock "github.com/sasha-s/go-deadlock"

// RWMutex is a drop-in for sync.RWMutex that additionally detects
// potential deadlocks (lock-order inversions, held-too-long locks) during
// development and testing.
type RWMutex struct {
	m deadlock.RWMutex
}

func (l *RWMutex) Lock()    { l.m.Lock() }
func (l *RWMutex) Unlock()  { l.m.Unlock() }
func (l *RWMutex) RLock()   { l.m.RLock() }
func (l *RWMutex) RUnlock() { l.m.RUnlock() }
