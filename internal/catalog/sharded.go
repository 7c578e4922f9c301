package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// virtualShardsPerFile spreads each physical shard across several ring
// positions for more even key distribution, the same technique the
// teacher's consistent-hash ring uses for physical storage nodes.
const virtualShardsPerFile = 150

// ring assigns filepaths to shard indices via consistent hashing, so a
// working catalog for a very large directory tree can be split across
// several SQLite files without the caller ever routing keys by hand.
type ring struct {
	mu           sync.RWMutex
	circle       map[uint32]int
	sortedHashes []uint32
}

func newRing(shardCount int) *ring {
	r := &ring{circle: make(map[uint32]int)}
	for shard := 0; shard < shardCount; shard++ {
		r.addShard(shard)
	}
	return r
}

func (r *ring) addShard(shard int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < virtualShardsPerFile; i++ {
		vnode := fmt.Sprintf("shard-%d-vnode-%d", shard, i)
		h := ringHash(vnode)
		r.circle[h] = shard
		r.sortedHashes = append(r.sortedHashes, h)
	}

	sort.Slice(r.sortedHashes, func(i, j int) bool { return r.sortedHashes[i] < r.sortedHashes[j] })
}

func (r *ring) shardFor(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := ringHash(key)
	idx := sort.Search(len(r.sortedHashes), func(i int) bool { return r.sortedHashes[i] >= h })
	if idx == len(r.sortedHashes) {
		idx = 0
	}
	return r.circle[r.sortedHashes[idx]]
}

func ringHash(key string) uint32 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint32(sum[:4])
}

// ShardedCatalog composes N catalogs (typically SQLiteCatalog instances)
// behind a consistent-hash ring keyed by filepath. It only makes sense
// for Working catalogs: a master catalog's entries are few (one per
// cluster) and gain nothing from sharding.
type ShardedCatalog struct {
	shards []Catalog
	ring   *ring
}

// NewShardedCatalog wraps shards, routing Insert/Delete by key and
// fanning Scan/Compact out to every shard.
func NewShardedCatalog(shards []Catalog) (*ShardedCatalog, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("sharded catalog requires at least one shard")
	}
	for _, s := range shards {
		if s.Kind() != Working {
			return nil, fmt.Errorf("sharded catalog only supports working catalogs")
		}
	}
	return &ShardedCatalog{shards: shards, ring: newRing(len(shards))}, nil
}

func (s *ShardedCatalog) Kind() Kind { return Working }

func (s *ShardedCatalog) Insert(key, value string) error {
	return s.shards[s.ring.shardFor(key)].Insert(key, value)
}

func (s *ShardedCatalog) InsertOrReplace(key, value string) error {
	return s.shards[s.ring.shardFor(key)].InsertOrReplace(key, value)
}

func (s *ShardedCatalog) InsertBatch(entries []Entry) error {
	byShard := make(map[int][]Entry)
	for _, e := range entries {
		shard := s.ring.shardFor(e.Key)
		byShard[shard] = append(byShard[shard], e)
	}
	for shard, batch := range byShard {
		if err := s.shards[shard].InsertBatch(batch); err != nil {
			return fmt.Errorf("shard %d: %w", shard, err)
		}
	}
	return nil
}

// Scan fans out to every shard and merges results in shard order. This is
// still a deterministic order (per spec.md §5's ordering guarantees) even
// though it is no longer pure cross-shard insertion order.
func (s *ShardedCatalog) Scan() ([]Entry, error) {
	var all []Entry
	for i, shard := range s.shards {
		entries, err := shard.Scan()
		if err != nil {
			return nil, fmt.Errorf("scan shard %d: %w", i, err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (s *ShardedCatalog) Delete(key string) error {
	return s.shards[s.ring.shardFor(key)].Delete(key)
}

func (s *ShardedCatalog) DeleteMany(keys []string) error {
	byShard := make(map[int][]string)
	for _, key := range keys {
		shard := s.ring.shardFor(key)
		byShard[shard] = append(byShard[shard], key)
	}
	for shard, batch := range byShard {
		if err := s.shards[shard].DeleteMany(batch); err != nil {
			return fmt.Errorf("shard %d: %w", shard, err)
		}
	}
	return nil
}

func (s *ShardedCatalog) Compact() error {
	for i, shard := range s.shards {
		if err := shard.Compact(); err != nil {
			return fmt.Errorf("compact shard %d: %w", i, err)
		}
	}
	return nil
}

func (s *ShardedCatalog) Close() error {
	var firstErr error
	for _, shard := range s.shards {
		if err := shard.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
