package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cometguard/internal/model"
)

// DefaultTTL is how long a fetched market snapshot stays valid.
const DefaultTTL = 60 * time.Second

type snapshotEntry struct {
	snapshot   model.MarketSnapshot
	insertedAt time.Time
}

// SnapshotStore caches the latest snapshot per market. Expiry is checked on
// read; nothing is evicted in the background.
type SnapshotStore struct {
	ttl  time.Duration
	mu   sync.RWMutex
	data map[string]snapshotEntry
}

// NewSnapshotStore returns a store with the given TTL, or DefaultTTL when
// ttl is not positive.
func NewSnapshotStore(ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotStore{ttl: ttl, data: make(map[string]snapshotEntry)}
}

// TTL returns the store's time-to-live.
func (s *SnapshotStore) TTL() time.Duration {
	return s.ttl
}

// Get returns a copy of the snapshot for key if now-insertedAt < TTL.
func (s *SnapshotStore) Get(key string, now time.Time) (model.MarketSnapshot, bool) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return model.MarketSnapshot{}, false
	}
	if now.Sub(entry.insertedAt) >= s.ttl {
		return model.MarketSnapshot{}, false
	}
	return entry.snapshot.Clone(), true
}

// Put replaces any entry for key with a copy of snapshot.
func (s *SnapshotStore) Put(key string, snapshot model.MarketSnapshot, now time.Time) {
	entry := snapshotEntry{snapshot: snapshot.Clone(), insertedAt: now}
	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
}

// MarketKey is the cache key for a market contract.
func MarketKey(market common.Address) string {
	return "market:" + strings.ToLower(market.Hex())
}
