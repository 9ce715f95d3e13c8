// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package topn implements the Managed One-Sided Top-N State (MTS): a
// bounded, in-memory cache of the K rows nearest one end of an ordered
// multiset, backed by a statetable.Table so the full multiset survives a
// restart. An MTS instance is owned by exactly one task at a time; every
// method takes a context.Context for cancellation but none of them are
// safe to call concurrently with one another - the same "await, then
// mutate" discipline an actor or a single-threaded executor gives the
// original source for free.
package topn

import (
	"context"
	"time"

	"github.com/tidwall/btree"

	"github.com/flowlake/topnstate/kv"
	"github.com/flowlake/topnstate/orderedrow"
	"github.com/flowlake/topnstate/statetable"
)

// Logger is the subset of structured-logging calls the MTS core makes.
// topnlog.Logger satisfies it; so does a no-op for tests.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// MetricsRecorder is the subset of observability the MTS core reports.
// topnmetrics.Recorder satisfies it; tests can leave it nil.
type MetricsRecorder interface {
	SetCacheLen(partition string, n int)
	SetTotalCount(partition string, n uint64)
	IncEvictions(partition string, delta int)
	ObserveFlushSeconds(partition string, seconds float64)
	// NoteEpoch tags subsequent IncEvictions calls with epoch, so a
	// recorder can report which epochs actually evicted something.
	NoteEpoch(epoch uint64)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config fixes the shape of one MTS instance. Directions and End together
// define the instance's total order; both must stay the same for the
// lifetime of a partition, since they are baked into every stored key.
type Config struct {
	Partition  string
	Directions []orderedrow.Direction
	End        End
	Capacity   int
}

// CacheEntry is one (key, value) pair held in the cache: key is the
// OrderedRow that defines the row's position in the total order; value is
// the full row payload, which may carry columns beyond the sort key.
type CacheEntry struct {
	Key   orderedrow.OrderedRow
	Value orderedrow.Row
}

type cacheItem struct {
	key   orderedrow.OrderedRow
	value orderedrow.Row
}

func lessItem(a, b cacheItem) bool { return orderedrow.Compare(a.key, b.key) < 0 }

func (it cacheItem) entry() CacheEntry { return CacheEntry{Key: it.key, Value: it.value} }

// MTS is the Managed One-Sided Top-N State described by spec.md §4.3-4.4.
type MTS struct {
	cfg   Config
	table *statetable.Table
	cache *btree.BTreeG[cacheItem]

	// totalCount is the size of the full multiset. The operator embedding
	// this MTS is responsible for persisting it across restarts (spec.md
	// is explicit that this one field lives outside the MTS's own
	// checkpoint); New takes the caller's last-known value back in.
	totalCount uint64
	dirty      bool

	logger  Logger
	metrics MetricsRecorder
}

// Option configures optional collaborators on New.
type Option func(*MTS)

func WithLogger(l Logger) Option { return func(m *MTS) { m.logger = l } }

func WithMetrics(r MetricsRecorder) Option { return func(m *MTS) { m.metrics = r } }

// New returns an MTS over store, with an empty cache and totalCount
// restored from the caller's last checkpoint (0 for a fresh partition).
// The cache is empty until FillInCache or ScanAndMerge populates it - New
// itself never touches the store.
func New(store kv.Store, cfg Config, totalCount uint64, opts ...Option) *MTS {
	assert(cfg.Capacity > 0, "capacity must be positive, got %d", cfg.Capacity)
	m := &MTS{
		cfg:        cfg,
		table:      statetable.Open(store, cfg.Partition),
		cache:      btree.NewBTreeG(lessItem),
		totalCount: totalCount,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.report()
	return m
}

func (m *MTS) report() {
	if m.metrics == nil {
		return
	}
	m.metrics.SetCacheLen(m.cfg.Partition, m.cache.Len())
	m.metrics.SetTotalCount(m.cfg.Partition, m.totalCount)
}

// TotalCount returns the current size of the full multiset.
func (m *MTS) TotalCount() uint64 { return m.totalCount }

// CacheLen returns the number of rows currently cached.
func (m *MTS) CacheLen() int { return m.cache.Len() }

// IsDirty reports whether Insert/Delete since the last Flush have left
// buffered, uncommitted writes.
func (m *MTS) IsDirty() bool { return m.dirty }

func (m *MTS) encodeKey(key orderedrow.OrderedRow) ([]byte, error) {
	if m.cfg.End.reversed() {
		return key.EncodeReversed()
	}
	return key.EncodeForward()
}

func (m *MTS) decodeKey(buf []byte) (orderedrow.OrderedRow, error) {
	return orderedrow.Decode(buf, m.cfg.Directions, m.cfg.End.reversed())
}

// cacheTopItem returns the cached entry nearest E.
func (m *MTS) cacheTopItem() (cacheItem, bool) {
	if m.cfg.End == EndMin {
		return m.cache.Min()
	}
	return m.cache.Max()
}

// cacheBottomItem returns the cached entry farthest from E - the first one
// retainTopN evicts when the cache overflows K.
func (m *MTS) cacheBottomItem() (cacheItem, bool) {
	if m.cfg.End == EndMin {
		return m.cache.Max()
	}
	return m.cache.Min()
}

func (m *MTS) popCacheBottom() (cacheItem, bool) {
	if m.cfg.End == EndMin {
		return m.cache.PopMax()
	}
	return m.cache.PopMin()
}

// closerToEnd reports whether key belongs nearer E than the current cache
// bottom - i.e. whether inserting it should displace the bottom.
func (m *MTS) closerToEnd(key, bottom orderedrow.OrderedRow) bool {
	c := orderedrow.Compare(key, bottom)
	if m.cfg.End == EndMin {
		return c < 0
	}
	return c > 0
}

// Insert adds (key, value) to the full multiset. total_count is
// incremented unconditionally, even when the row does not enter the cache
// - a caller that inserts the same key twice without an intervening
// delete violates the state table's contract and the behavior is
// undefined, matching the Open Question resolution that duplicate-insert
// is a caller error, not a condition this package detects and recovers
// from.
//
// Retention is deferred to Flush (spec.md §4.3 step 2): have_storage_only
// reports whether the cache is already known to be missing rows that
// exist only in storage (total_count > cache length, which after a Flush
// can only happen once the multiset has overflowed Capacity at least
// once). When it is false, the cache holds the entire multiset and key
// is cached unconditionally, even past Capacity - the worked example in
// spec.md §8 inserts three rows into a Capacity-2 cache and relies on
// exactly this, leaving the overflow for the next Flush/retainTopN to
// trim. When have_storage_only is true, the cache is already capped and a
// genuine storage-only tail exists, so a new key only displaces the
// current bottom if it is closer to E (must_flush_only: the decision was
// made now, not deferred to the next flush).
func (m *MTS) Insert(ctx context.Context, key orderedrow.OrderedRow, value orderedrow.Row, epoch uint64) error {
	haveStorageOnly := m.totalCount > uint64(m.cache.Len())

	encKey, err := m.encodeKey(key)
	if err != nil {
		return err
	}
	encVal, err := orderedrow.EncodeValue(value)
	if err != nil {
		return err
	}
	m.table.Insert(encKey, encVal)
	m.dirty = true
	m.totalCount++

	item := cacheItem{key: key, value: value}
	mustFlushOnly := false
	switch {
	case !haveStorageOnly:
		m.cache.Set(item)
	default:
		mustFlushOnly = true
		bottom, ok := m.cacheBottomItem()
		if ok && m.closerToEnd(key, bottom.key) {
			m.popCacheBottom()
			m.cache.Set(item)
			if m.metrics != nil {
				m.metrics.NoteEpoch(epoch)
				m.metrics.IncEvictions(m.cfg.Partition, 1)
			}
		}
	}
	m.logger.Debug("insert", "partition", m.cfg.Partition, "epoch", epoch,
		"have_storage_only", haveStorageOnly, "must_flush_only", mustFlushOnly)
	m.report()
	return nil
}

// Delete removes key from the full multiset. value is the row the caller
// believes is stored under key; it is returned verbatim when key is not
// found in the cache (a storage-only row, whose actual payload this
// in-memory structure never held), and the cache's own copy is returned
// when it is found there. Delete panics only when total_count is already
// zero; a delete of a key that is not live while total_count is positive
// is not detected, and total_count is still decremented.
//
// spec.md §4.3 step 4: if the cache empties out while rows remain in
// storage, Delete immediately calls ScanAndMerge (which, unlike
// FillInCache, tolerates the dirty delta buffer Delete itself just left
// behind) so TopElement's "non-empty cache iff total_count > 0"
// precondition keeps holding without waiting for the next Flush.
func (m *MTS) Delete(ctx context.Context, key orderedrow.OrderedRow, value orderedrow.Row, epoch uint64) (orderedrow.Row, bool, error) {
	assert(m.totalCount > 0, "delete on empty multiset")
	encKey, err := m.encodeKey(key)
	if err != nil {
		return nil, false, err
	}
	m.table.Delete(encKey)
	m.dirty = true
	m.totalCount--

	removed, foundInCache := m.cache.Delete(cacheItem{key: key})
	returned := value
	if foundInCache {
		returned = removed.value
	}
	m.logger.Debug("delete", "partition", m.cfg.Partition, "epoch", epoch, "found_in_cache", foundInCache)
	m.report()

	if m.cache.Len() == 0 && m.totalCount > 0 {
		if err := m.ScanAndMerge(ctx, epoch); err != nil {
			return returned, foundInCache, err
		}
	}
	return returned, foundInCache, nil
}

// CacheEntries returns every cached (key, value) pair, ordered from
// nearest E to farthest. It is read-only: tests and diagnostics use it to
// inspect cache contents without draining it the way PopTopElement would.
func (m *MTS) CacheEntries() []CacheEntry {
	out := make([]CacheEntry, 0, m.cache.Len())
	it := m.cache.Iter()
	if m.cfg.End == EndMin {
		for ok := it.First(); ok; ok = it.Next() {
			out = append(out, it.Item().entry())
		}
	} else {
		for ok := it.Last(); ok; ok = it.Prev() {
			out = append(out, it.Item().entry())
		}
	}
	return out
}

// TopElement returns the cached entry nearest E, without mutating any
// state. ok is false both when the multiset is empty and when it is
// merely un-cached (a fresh MTS before its first fill) - callers that care
// about the difference should check TotalCount themselves.
func (m *MTS) TopElement() (entry CacheEntry, ok bool) {
	item, ok := m.cacheTopItem()
	if !ok {
		return CacheEntry{}, false
	}
	return item.entry(), true
}

// PopTopElement returns the cached entry nearest E and removes it from the
// full multiset (cache and storage delta alike), as a single step.
func (m *MTS) PopTopElement(ctx context.Context, epoch uint64) (entry CacheEntry, ok bool, err error) {
	item, ok := m.cacheTopItem()
	if !ok {
		return CacheEntry{}, false, nil
	}
	if _, _, err := m.Delete(ctx, item.key, item.value, epoch); err != nil {
		return CacheEntry{}, false, err
	}
	return item.entry(), true, nil
}

// Flush commits every buffered Insert/Delete to the store atomically at
// epoch, then trims the cache back to Capacity. Flush does not refill an
// under-full cache; call FillInCache or ScanAndMerge for that.
func (m *MTS) Flush(ctx context.Context, epoch uint64) error {
	start := time.Now()
	if err := m.table.Commit(ctx, epoch); err != nil {
		return err
	}
	m.dirty = false
	if m.metrics != nil {
		m.metrics.ObserveFlushSeconds(m.cfg.Partition, time.Since(start).Seconds())
		m.metrics.NoteEpoch(epoch)
	}
	m.retainTopN()
	m.report()
	return nil
}

// retainTopN evicts from the cache (never from storage) until it holds at
// most Capacity rows, discarding the entries farthest from E first.
func (m *MTS) retainTopN() {
	evicted := 0
	for m.cache.Len() > m.cfg.Capacity {
		m.popCacheBottom()
		evicted++
	}
	if evicted > 0 && m.metrics != nil {
		m.metrics.IncEvictions(m.cfg.Partition, evicted)
	}
}

// FillInCache rebuilds the cache from scratch by scanning the first
// Capacity rows directly from the store, in storage order (nearest-to-E
// first for both EndMin and EndMax, by construction of encodeKey/decodeKey
// - this direction-awareness in both cases is required; decoding an
// EndMax-stored key as if it were forward-encoded would silently corrupt
// row values, not just ordering). It is meant for startup and crash
// recovery, when the cache is empty and the delta buffer has nothing
// pending.
func (m *MTS) FillInCache(ctx context.Context) error {
	assert(!m.dirty, "FillInCache called with a dirty delta buffer")
	m.cache = btree.NewBTreeG(lessItem)
	items, err := m.table.Iter(ctx, nil)
	if err != nil {
		return err
	}
	for _, kvp := range items {
		if m.cache.Len() >= m.cfg.Capacity {
			break
		}
		key, err := m.decodeKey(kvp.Key)
		if err != nil {
			return err
		}
		value, err := orderedrow.DecodeValue(kvp.Value)
		if err != nil {
			return err
		}
		m.cache.Set(cacheItem{key: key, value: value})
	}
	m.report()
	return nil
}

// ScanAndMerge re-scans the store and merges rows into the existing cache
// instead of discarding it first, then trims back to Capacity. Unlike
// FillInCache it tolerates a dirty delta buffer (statetable.Table.Iter
// always merges the buffer over the committed store, dirty or not) and is
// safe - idempotent, even - to call on a partially-filled cache: merging
// an entry already present is a no-op, since cacheItem's order is keyed on
// the row's key alone.
func (m *MTS) ScanAndMerge(ctx context.Context, epoch uint64) error {
	items, err := m.table.Iter(ctx, nil)
	if err != nil {
		return err
	}
	for _, kvp := range items {
		key, err := m.decodeKey(kvp.Key)
		if err != nil {
			return err
		}
		value, err := orderedrow.DecodeValue(kvp.Value)
		if err != nil {
			return err
		}
		m.cache.Set(cacheItem{key: key, value: value})
	}
	if m.metrics != nil {
		m.metrics.NoteEpoch(epoch)
	}
	m.retainTopN()
	m.report()
	return nil
}
