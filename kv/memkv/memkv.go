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

// Package memkv is an in-process kv.Store backed by ordered btree maps, one
// per partition. It is the default store for tests and for cmd/topnstate's
// demo scenarios; it needs no setup and its Scan order is exactly the
// unsigned-lexicographic byte order the codec relies on, since Go string
// comparison already is that order.
package memkv

import (
	"context"
	"sync"

	"github.com/tidwall/btree"

	"github.com/flowlake/topnstate/kv"
)

const degree = 32

// Store is a kv.Store. The zero value is not usable; use New.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*btree.Map[string, []byte]
}

func New() *Store {
	return &Store{buckets: make(map[string]*btree.Map[string, []byte])}
}

func (s *Store) Close() error { return nil }

func (s *Store) View(_ context.Context, fn func(kv.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx := &tx{store: s, writable: false}
	return fn(tx)
}

// Update runs fn against copy-on-write clones of every bucket it touches;
// the clones replace the live buckets only if fn returns nil, giving the
// "commits the delta atomically at a given epoch" semantics spec.md asks of
// the state store, without a real write-ahead log.
func (s *Store) Update(_ context.Context, _ uint64, fn func(kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{store: s, writable: true, staged: make(map[string]*btree.Map[string, []byte])}
	if err := fn(tx); err != nil {
		return err
	}
	for name, m := range tx.staged {
		s.buckets[name] = m
	}
	return nil
}

type tx struct {
	store    *Store
	writable bool
	staged   map[string]*btree.Map[string, []byte]
}

func (t *tx) Bucket(_ context.Context, partition string) (kv.Bucket, error) {
	if !t.writable {
		base := t.store.buckets[partition]
		return &bucket{name: partition, m: base, writable: false}, nil
	}
	m, ok := t.staged[partition]
	if !ok {
		if base := t.store.buckets[partition]; base != nil {
			m = base.Copy()
		} else {
			m = btree.NewMap[string, []byte](degree)
		}
		t.staged[partition] = m
	}
	return &bucket{name: partition, m: m, writable: true}, nil
}

type bucket struct {
	name     string
	m        *btree.Map[string, []byte]
	writable bool
}

func (b *bucket) Get(key []byte) ([]byte, bool, error) {
	if b.m == nil {
		return nil, false, nil
	}
	v, ok := b.m.Get(string(key))
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *bucket) Put(key, value []byte) error {
	if !b.writable {
		return errReadOnly
	}
	v := make([]byte, len(value))
	copy(v, value)
	b.m.Set(string(key), v)
	return nil
}

func (b *bucket) Delete(key []byte) error {
	if !b.writable {
		return errReadOnly
	}
	b.m.Delete(string(key))
	return nil
}

func (b *bucket) Scan(from []byte) (kv.Iterator, error) {
	if b.m == nil {
		return &emptyIter{}, nil
	}
	it := b.m.Iter()
	var started bool
	if len(from) == 0 {
		started = it.First()
	} else {
		started = it.Seek(string(from))
	}
	return &memIter{it: it, started: started, first: true}, nil
}

type memIter struct {
	it      btree.MapIter[string, []byte]
	started bool
	first   bool
}

func (m *memIter) Next() bool {
	if !m.started {
		return false
	}
	if m.first {
		m.first = false
		return true
	}
	m.started = m.it.Next()
	return m.started
}

func (m *memIter) Key() []byte   { return []byte(m.it.Key()) }
func (m *memIter) Value() []byte { return m.it.Value() }
func (m *memIter) Err() error    { return nil }
func (m *memIter) Close()        {}

type emptyIter struct{}

func (emptyIter) Next() bool    { return false }
func (emptyIter) Key() []byte   { return nil }
func (emptyIter) Value() []byte { return nil }
func (emptyIter) Err() error    { return nil }
func (emptyIter) Close()        {}

var errReadOnly = readOnlyError{}

type readOnlyError struct{}

func (readOnlyError) Error() string { return "memkv: write attempted in a read-only transaction" }
