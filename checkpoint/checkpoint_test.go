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

package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowlake/topnstate/checkpoint"
)

func TestLoadMissingReturnsZeroRecord(t *testing.T) {
	s := checkpoint.NewStore(t.TempDir())
	rec, err := s.Load("p1")
	require.NoError(t, err)
	require.Equal(t, checkpoint.Record{Partition: "p1"}, rec)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := checkpoint.NewStore(t.TempDir())
	want := checkpoint.Record{Partition: "p1", Epoch: 42, TotalCount: 7}
	require.NoError(t, s.Save(want))

	got, err := s.Load("p1")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSaveOverwritesPreviousRecord(t *testing.T) {
	s := checkpoint.NewStore(t.TempDir())
	require.NoError(t, s.Save(checkpoint.Record{Partition: "p1", Epoch: 1, TotalCount: 1}))
	require.NoError(t, s.Save(checkpoint.Record{Partition: "p1", Epoch: 2, TotalCount: 5}))

	got, err := s.Load("p1")
	require.NoError(t, err)
	require.Equal(t, uint64(2), got.Epoch)
	require.Equal(t, uint64(5), got.TotalCount)
}
