package files

import (
	"sort"
	"sync"
)

// keyedMutex hands out one mutex per key. Entries are reference counted and
// dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll acquires the mutexes of every distinct key in sorted order, the
// order the collector uses, and returns one function releasing them all.
func (k *keyedMutex) LockAll(keys ...string) (unlock func()) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, key := range sorted {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// inflight counts uploads per hash.
type inflight struct {
	mu     sync.Mutex
	hashes map[string]int
	total  int
}

func newInflight() *inflight {
	return &inflight{hashes: make(map[string]int)}
}

func (f *inflight) add(hash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[hash]++
	f.total++
	return f.total
}

func (f *inflight) done(hash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[hash] <= 1 {
		delete(f.hashes, hash)
	} else {
		f.hashes[hash]--
	}
	f.total--
	return f.total
}

func (f *inflight) has(hash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[hash] > 0
}
