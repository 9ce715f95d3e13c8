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

// Package mdbxkv is the durable kv.Store backend: one MDBX environment per
// store, one named sub-database (DBI) per partition, opened lazily on
// first use since spec.md's partitions are not known up front. Values are
// snappy-compressed before they cross into MDBX - row payloads are
// run-length-friendly byte strings (see orderedrow's group encoding) and
// compress well, and snappy is cheap enough to pay on every Put/Get
// without showing up in flush latency.
package mdbxkv

import (
	"context"
	"os"

	"github.com/golang/snappy"
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/flowlake/topnstate/kv"
)

// Store is a kv.Store backed by a single MDBX environment on disk.
type Store struct {
	env   *mdbx.Env
	dbis  map[string]mdbx.DBI
}

// Open creates or opens an MDBX environment rooted at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "mdbxkv: mkdir %s", path)
	}
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "mdbxkv: new env")
	}
	if err := env.SetOption(mdbx.OptMaxDB, 256); err != nil {
		return nil, errors.Wrap(err, "mdbxkv: set max dbs")
	}
	if err := env.SetGeometry(-1, -1, 64*1024*1024*1024, -1, -1, 4096); err != nil {
		return nil, errors.Wrap(err, "mdbxkv: set geometry")
	}
	if err := env.Open(path, mdbx.Coalesce|mdbx.LifoReclaim, 0o644); err != nil {
		return nil, errors.Wrapf(err, "mdbxkv: open %s", path)
	}
	return &Store{env: env, dbis: make(map[string]mdbx.DBI)}, nil
}

func (s *Store) Close() error {
	s.env.Close()
	return nil
}

func (s *Store) dbi(txn *mdbx.Txn, partition string, create bool) (mdbx.DBI, error) {
	if dbi, ok := s.dbis[partition]; ok {
		return dbi, nil
	}
	flags := uint(0)
	if create {
		flags |= mdbx.Create
	}
	dbi, err := txn.OpenDBISimple(partition, flags)
	if err != nil {
		return 0, errors.Wrapf(err, "mdbxkv: open dbi %s", partition)
	}
	s.dbis[partition] = dbi
	return dbi, nil
}

func (s *Store) View(_ context.Context, fn func(kv.Tx) error) error {
	return s.env.View(func(txn *mdbx.Txn) error {
		return fn(&tx{store: s, txn: txn, writable: false})
	})
}

func (s *Store) Update(_ context.Context, _ uint64, fn func(kv.Tx) error) error {
	return s.env.Update(func(txn *mdbx.Txn) error {
		return fn(&tx{store: s, txn: txn, writable: true})
	})
}

type tx struct {
	store    *Store
	txn      *mdbx.Txn
	writable bool
}

func (t *tx) Bucket(_ context.Context, partition string) (kv.Bucket, error) {
	dbi, err := t.store.dbi(t.txn, partition, t.writable)
	if err != nil {
		return nil, err
	}
	return &bucket{txn: t.txn, dbi: dbi, writable: t.writable}, nil
}

type bucket struct {
	txn      *mdbx.Txn
	dbi      mdbx.DBI
	writable bool
}

func (b *bucket) Get(key []byte) ([]byte, bool, error) {
	v, err := b.txn.Get(b.dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kv.WrapStorageError("mdbxkv.Get", err)
	}
	out, err := snappy.Decode(nil, v)
	if err != nil {
		return nil, false, kv.WrapStorageError("mdbxkv.Get decompress", err)
	}
	return out, true, nil
}

func (b *bucket) Put(key, value []byte) error {
	if !b.writable {
		return errReadOnly
	}
	compressed := snappy.Encode(nil, value)
	if err := b.txn.Put(b.dbi, key, compressed, 0); err != nil {
		return kv.WrapStorageError("mdbxkv.Put", err)
	}
	return nil
}

func (b *bucket) Delete(key []byte) error {
	if !b.writable {
		return errReadOnly
	}
	if err := b.txn.Del(b.dbi, key, nil); err != nil && !mdbx.IsNotFound(err) {
		return kv.WrapStorageError("mdbxkv.Delete", err)
	}
	return nil
}

func (b *bucket) Scan(from []byte) (kv.Iterator, error) {
	cur, err := b.txn.OpenCursor(b.dbi)
	if err != nil {
		return nil, kv.WrapStorageError("mdbxkv.Scan", err)
	}
	it := &cursorIter{cur: cur}
	if len(from) == 0 {
		it.key, it.val, it.err = cur.Get(nil, nil, mdbx.First)
	} else {
		it.key, it.val, it.err = cur.Get(from, nil, mdbx.SetRange)
	}
	it.first = true
	if mdbx.IsNotFound(it.err) {
		it.err = nil
		it.done = true
	}
	return it, nil
}

type cursorIter struct {
	cur        *mdbx.Cursor
	key, val   []byte
	err        error
	first      bool
	done       bool
}

func (it *cursorIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if it.first {
		it.first = false
		return it.key != nil
	}
	it.key, it.val, it.err = it.cur.Get(nil, nil, mdbx.Next)
	if mdbx.IsNotFound(it.err) {
		it.err = nil
		it.done = true
		return false
	}
	return it.err == nil
}

func (it *cursorIter) Key() []byte { return it.key }

func (it *cursorIter) Value() []byte {
	out, err := snappy.Decode(nil, it.val)
	if err != nil {
		it.err = err
		return nil
	}
	return out
}

func (it *cursorIter) Err() error { return it.err }

func (it *cursorIter) Close() { it.cur.Close() }

var errReadOnly = roError{}

type roError struct{}

func (roError) Error() string { return "mdbxkv: write attempted in a read-only transaction" }
