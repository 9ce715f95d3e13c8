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

// Package kv is the abstract ordered key-value contract the state table is
// built against. spec.md treats the concrete state store as an external
// collaborator and specifies it only by the contract it must offer: point
// writes, point deletes, a forward iterator over a keyspace partition, and
// epoch-scoped commit. This package is that contract, plus two
// implementations (kv/memkv, kv/mdbxkv).
package kv

import "context"

// Iterator walks a bucket's keys in ascending unsigned-lexicographic byte
// order. It must be Closed after use and must not be retained across a
// commit.
type Iterator interface {
	// Next advances the iterator and reports whether a pair is available.
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close()
}

// Bucket is one keyspace partition: a namespace private to a single MTS
// instance, or shared by convention between a reader and the writer that
// last committed to it.
type Bucket interface {
	// Get returns (nil, false, nil) if the key is absent.
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Scan returns a forward iterator over all keys >= from (from == nil
	// means the start of the bucket).
	Scan(from []byte) (Iterator, error)
}

// Tx is a view (read-only) or an update (read-write) over one or more
// buckets, scoped to a single logical transaction against the store.
type Tx interface {
	Bucket(ctx context.Context, partition string) (Bucket, error)
}

// Store is the abstract state store the MTS core is built against. View
// opens a read-only Tx; Update opens a read-write Tx that commits
// atomically at epoch when fn returns nil, and discards all writes
// otherwise.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, epoch uint64, fn func(Tx) error) error
	Close() error
}

// StorageError wraps a failure from the underlying Store: a read, write,
// or commit that failed below the statetable/topn layer.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string { return "kv: " + e.Op + ": " + e.Cause.Error() }
func (e *StorageError) Unwrap() error { return e.Cause }

func WrapStorageError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &StorageError{Op: op, Cause: cause}
}
