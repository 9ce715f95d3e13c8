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

package orderedrow_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/flowlake/topnstate/orderedrow"
)

var mixedDirections = []orderedrow.Direction{orderedrow.Descending, orderedrow.Ascending}

func row(s string, n int64) orderedrow.OrderedRow {
	return orderedrow.New(orderedrow.Row{orderedrow.String(s), orderedrow.Int64(n)}, mixedDirections)
}

func TestSpecWorkedExampleOrdering(t *testing.T) {
	// spec.md §8: direction vector (Desc, Asc), rows r1..r4. Under this
	// vector the full order (smallest to largest key) is r3 < r1 < r2 < r4,
	// matching the worked example: r4 is always top_element, and flushing
	// {r4, r3, r2} with K=2 evicts the bottom, r3.
	r1 := row("abc", 2)
	r2 := row("abc", 3)
	r3 := row("abd", 3)
	r4 := row("ab", 4)

	require.Greater(t, orderedrow.Compare(r4, r3), 0)
	require.Greater(t, orderedrow.Compare(r4, r2), 0)
	require.Greater(t, orderedrow.Compare(r4, r1), 0)
	require.Less(t, orderedrow.Compare(r3, r1), 0)
	require.Less(t, orderedrow.Compare(r3, r2), 0)
	require.Less(t, orderedrow.Compare(r1, r2), 0)
}

func TestEncodeForwardMatchesCompare(t *testing.T) {
	rows := []orderedrow.OrderedRow{row("abc", 2), row("abc", 3), row("abd", 3), row("ab", 4)}
	for i := range rows {
		for j := range rows {
			ei, err := rows[i].EncodeForward()
			require.NoError(t, err)
			ej, err := rows[j].EncodeForward()
			require.NoError(t, err)
			wantSign := sign(orderedrow.Compare(rows[i], rows[j]))
			gotSign := sign(bytes.Compare(ei, ej))
			require.Equal(t, wantSign, gotSign, "rows[%d] vs rows[%d]", i, j)
		}
	}
}

func TestEncodeReversedInvertsOrder(t *testing.T) {
	a := row("abc", 2)
	b := row("abd", 3)
	ea, err := a.EncodeReversed()
	require.NoError(t, err)
	eb, err := b.EncodeReversed()
	require.NoError(t, err)
	// encode_reversed(a) < encode_reversed(b) iff compare(b,a) < 0
	require.Equal(t, sign(bytes.Compare(ea, eb)), sign(orderedrow.Compare(b, a)))
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, r := range []orderedrow.OrderedRow{row("abc", 2), row("", 0), row("ab", -4), row("longer-than-one-group-of-eight", 9)} {
		fwd, err := r.EncodeForward()
		require.NoError(t, err)
		got, err := orderedrow.Decode(fwd, mixedDirections, false)
		require.NoError(t, err)
		require.True(t, r.Row.Equal(got.Row))

		rev, err := r.EncodeReversed()
		require.NoError(t, err)
		got2, err := orderedrow.Decode(rev, mixedDirections, true)
		require.NoError(t, err)
		require.True(t, r.Row.Equal(got2.Row))
	}
}

func TestDecodeTruncatedIsCodecError(t *testing.T) {
	fwd, err := row("abc", 2).EncodeForward()
	require.NoError(t, err)
	_, err = orderedrow.Decode(fwd[:len(fwd)-1], mixedDirections, false)
	require.Error(t, err)
	var ce *orderedrow.CodecError
	require.ErrorAs(t, err, &ce)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// TestPropertyOrderPreservation is P3/P4 from the spec: EncodeForward and
// EncodeReversed preserve/reverse Compare's order, and Decode inverts both,
// for arbitrary generated rows.
func TestPropertyOrderPreservation(t *testing.T) {
	directions := []orderedrow.Direction{orderedrow.Ascending, orderedrow.Descending}
	genRow := rapid.Custom(func(t *rapid.T) orderedrow.OrderedRow {
		s := rapid.StringN(0, 12, -1).Draw(t, "s")
		n := rapid.Int64().Draw(t, "n")
		return orderedrow.New(orderedrow.Row{orderedrow.String(s), orderedrow.Int64(n)}, directions)
	})

	rapid.Check(t, func(t *rapid.T) {
		a := genRow.Draw(t, "a")
		b := genRow.Draw(t, "b")

		fa, err := a.EncodeForward()
		require.NoError(t, err)
		fb, err := b.EncodeForward()
		require.NoError(t, err)
		require.Equal(t, sign(orderedrow.Compare(a, b)), sign(bytes.Compare(fa, fb)))

		ra, err := a.EncodeReversed()
		require.NoError(t, err)
		rb, err := b.EncodeReversed()
		require.NoError(t, err)
		require.Equal(t, sign(orderedrow.Compare(b, a)), sign(bytes.Compare(ra, rb)))

		da, err := orderedrow.Decode(fa, directions, false)
		require.NoError(t, err)
		require.True(t, a.Row.Equal(da.Row))

		db, err := orderedrow.Decode(rb, directions, true)
		require.NoError(t, err)
		require.True(t, b.Row.Equal(db.Row))
	})
}
