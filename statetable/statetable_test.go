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

package statetable_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/flowlake/topnstate/kv/memkv"
	"github.com/flowlake/topnstate/statetable"
)

func TestInsertVisibleBeforeCommit(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	tbl := statetable.Open(store, "p")

	tbl.Insert([]byte("a"), []byte("1"))
	require.True(t, tbl.IsDirty())

	v, ok, err := tbl.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, tbl.Commit(ctx, 1))
	require.False(t, tbl.IsDirty())

	v, ok, err = tbl.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestDeleteShadowsStoredValue(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	tbl := statetable.Open(store, "p")
	tbl.Insert([]byte("a"), []byte("1"))
	require.NoError(t, tbl.Commit(ctx, 1))

	tbl.Delete([]byte("a"))
	_, ok, err := tbl.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, tbl.Commit(ctx, 2))
	_, ok, err = tbl.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterMergesDeltaOverStore(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	tbl := statetable.Open(store, "p")
	tbl.Insert([]byte("a"), []byte("1"))
	tbl.Insert([]byte("b"), []byte("2"))
	tbl.Insert([]byte("c"), []byte("3"))
	require.NoError(t, tbl.Commit(ctx, 1))

	tbl.Delete([]byte("b"))
	tbl.Insert([]byte("d"), []byte("4"))

	items, err := tbl.Iter(ctx, nil)
	require.NoError(t, err)

	want := []statetable.KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("d"), Value: []byte("4")},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("Iter result mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitVisibleToOtherTableInstance(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	tbl := statetable.Open(store, "p")
	tbl.Insert([]byte("a"), []byte("1"))
	require.NoError(t, tbl.Commit(ctx, 1))

	// A view over the committed store must see the write, independent of
	// the table instance that made it.
	view := statetable.Open(store, "p")
	v, ok, err := view.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}
