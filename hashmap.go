// Completion: 100% - Module complete
package main

import (
	"fmt"
	"hash/fnv"

	"sindarinc/internal/engine"
)

// ModuleFreshnessCache maps an interned source-path hash to the mtime
// (as Unix seconds) observed the last time that file was seen, so
// watch.go can skip rebuilding when a watched file's mtime hasn't
// changed since the last build. A chained hash map (uint64 key
// -> float64 value, FNV hash, load-factor resize at 0.75).
type ModuleFreshnessCache struct {
	buckets []freshnessBucket
	size    int
	count   int
}

type freshnessBucket struct {
	key      uint64
	mtime    float64
	occupied bool
	next     *freshnessBucket
}

func NewModuleFreshnessCache(initialSize int) *ModuleFreshnessCache {
	if initialSize < 16 {
		initialSize = 16
	}
	return &ModuleFreshnessCache{
		buckets: make([]freshnessBucket, initialSize),
		size:    initialSize,
		count:   0,
	}
}

func (m *ModuleFreshnessCache) hash(key uint64) uint64 {
	h := fnv.New64a()
	bytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bytes[i] = byte(key >> (i * 8))
	}
	h.Write(bytes)
	return h.Sum64()
}

// Get returns the last-seen mtime for a path hash and whether it's present.
func (m *ModuleFreshnessCache) Get(key uint64) (float64, bool) {
	idx := m.hash(key) % uint64(m.size)
	bucket := &m.buckets[idx]

	if bucket.occupied && bucket.key == key {
		return bucket.mtime, true
	}

	current := bucket.next
	for current != nil {
		if current.key == key {
			return current.mtime, true
		}
		current = current.next
	}

	return 0.0, false
}

// Set records the mtime observed for a path hash at its last resolution.
func (m *ModuleFreshnessCache) Set(key uint64, mtime float64) {
	idx := m.hash(key) % uint64(m.size)
	bucket := &m.buckets[idx]

	if !bucket.occupied {
		bucket.key = key
		bucket.mtime = mtime
		bucket.occupied = true
		m.count++
		return
	}

	if bucket.key == key {
		bucket.mtime = mtime
		return
	}

	current := bucket.next
	prev := bucket
	for current != nil {
		if current.key == key {
			current.mtime = mtime
			return
		}
		prev = current
		current = current.next
	}

	newBucket := &freshnessBucket{
		key:      key,
		mtime:    mtime,
		occupied: true,
	}
	prev.next = newBucket
	m.count++

	if float64(m.count)/float64(m.size) > 0.75 {
		m.resize()
	}
}

func (m *ModuleFreshnessCache) resize() {
	oldBuckets := m.buckets
	m.size *= 2
	m.buckets = make([]freshnessBucket, m.size)
	m.count = 0

	for i := range oldBuckets {
		bucket := &oldBuckets[i]
		if bucket.occupied {
			m.Set(bucket.key, bucket.mtime)
		}

		current := bucket.next
		for current != nil {
			m.Set(current.key, current.mtime)
			current = current.next
		}
	}
}

// Stale reports whether the file's current mtime differs from (or is
// absent from) the cache, and records the new mtime either way - the
// call sites in watch.go want both in one shot.
func (m *ModuleFreshnessCache) Stale(path string, mtimeUnix float64) bool {
	key := engine.HashStringKey(path)
	prev, ok := m.Get(key)
	m.Set(key, mtimeUnix)
	return !ok || prev != mtimeUnix
}

// Count returns the number of entries currently cached.
func (m *ModuleFreshnessCache) Count() int { return m.count }

func (m *ModuleFreshnessCache) String() string {
	return fmt.Sprintf("ModuleFreshnessCache{count: %d, size: %d}", m.count, m.size)
}
