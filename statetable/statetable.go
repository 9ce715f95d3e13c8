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

// Package statetable is the write-through adapter between the MTS core and
// an ordered kv.Store: an in-memory delta buffer (inserts and tombstones,
// newest write wins) overlaid on the store's forward iterator, committed to
// the store atomically at Commit. Reads always observe uncommitted writes
// of the same table instance; the table never lets a reader outrun the
// store's last commit.
package statetable

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"

	"github.com/flowlake/topnstate/kv"
)

type entryKind uint8

const (
	entryInsert entryKind = iota
	entryTombstone
)

type entry struct {
	kind  entryKind
	value []byte
}

// Table is one keyspace partition of an MTS, backed by store. It is not
// safe for concurrent use: the MTS core that owns it is itself
// single-threaded (see the topn package doc).
type Table struct {
	store     kv.Store
	partition string

	delta *btree.Map[string, entry]
	dirty bool
}

const deltaDegree = 32

// Open returns a Table over partition, with an empty delta buffer.
func Open(store kv.Store, partition string) *Table {
	return &Table{
		store:     store,
		partition: partition,
		delta:     btree.NewMap[string, entry](deltaDegree),
	}
}

// IsDirty reports whether the table has buffered writes not yet committed
// to the store.
func (t *Table) IsDirty() bool { return t.dirty }

// Insert buffers a write-through insert; it is visible to Get and Iter
// immediately, and to the store only after Commit.
func (t *Table) Insert(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	t.delta.Set(string(key), entry{kind: entryInsert, value: v})
	t.dirty = true
}

// Delete buffers a write-through tombstone.
func (t *Table) Delete(key []byte) {
	t.delta.Set(string(key), entry{kind: entryTombstone})
	t.dirty = true
}

// Get returns the value for key, preferring the delta buffer over the
// committed store.
func (t *Table) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if e, ok := t.delta.Get(string(key)); ok {
		if e.kind == entryTombstone {
			return nil, false, nil
		}
		out := make([]byte, len(e.value))
		copy(out, e.value)
		return out, true, nil
	}
	var (
		val   []byte
		found bool
	)
	err := t.store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(ctx, t.partition)
		if err != nil {
			return err
		}
		v, ok, err := b.Get(key)
		if err != nil {
			return err
		}
		val, found = v, ok
		return nil
	})
	if err != nil {
		return nil, false, kv.WrapStorageError("statetable.Get", err)
	}
	return val, found, nil
}

// KV is one key/value pair yielded by Iter.
type KV struct {
	Key   []byte
	Value []byte
}

// Iter returns every live key from >= from in ascending order, merging the
// delta buffer over the store's committed state: a delta insert shadows the
// stored value, a delta tombstone suppresses it, and anything not
// mentioned in the delta passes through from the store unchanged.
func (t *Table) Iter(ctx context.Context, from []byte) ([]KV, error) {
	var storeItems []KV
	err := t.store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(ctx, t.partition)
		if err != nil {
			return err
		}
		it, err := b.Scan(from)
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			storeItems = append(storeItems, KV{Key: append([]byte(nil), it.Key()...), Value: append([]byte(nil), it.Value()...)})
		}
		return it.Err()
	})
	if err != nil {
		return nil, kv.WrapStorageError("statetable.Iter", err)
	}

	merged := make(map[string]KV, len(storeItems))
	for _, kvp := range storeItems {
		merged[string(kvp.Key)] = kvp
	}
	t.delta.Scan(func(key string, e entry) bool {
		if len(from) > 0 && key < string(from) {
			return true
		}
		if e.kind == entryTombstone {
			delete(merged, key)
			return true
		}
		merged[key] = KV{Key: []byte(key), Value: e.value}
		return true
	})

	out := make([]KV, 0, len(merged))
	for _, kvp := range merged {
		out = append(out, kvp)
	}
	sortKV(out)
	return out, nil
}

func sortKV(items []KV) {
	// The merged set comes out of a Go map, so its order is arbitrary;
	// insertion sort keeps this allocation-free and avoids importing sort.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && string(items[j].Key) < string(items[j-1].Key); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// Commit applies the buffered delta to the store atomically at epoch, then
// clears the buffer. A Commit of an empty delta still opens a store
// transaction, matching spec.md's framing of flush as unconditional.
func (t *Table) Commit(ctx context.Context, epoch uint64) error {
	err := t.store.Update(ctx, epoch, func(tx kv.Tx) error {
		b, err := tx.Bucket(ctx, t.partition)
		if err != nil {
			return err
		}
		var writeErr error
		t.delta.Scan(func(key string, e entry) bool {
			switch e.kind {
			case entryInsert:
				writeErr = b.Put([]byte(key), e.value)
			case entryTombstone:
				writeErr = b.Delete([]byte(key))
			}
			return writeErr == nil
		})
		return writeErr
	})
	if err != nil {
		return errors.Wrap(kv.WrapStorageError("statetable.Commit", err), "commit delta")
	}
	t.delta = btree.NewMap[string, entry](deltaDegree)
	t.dirty = false
	return nil
}
