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

// Package orderedrow encodes a Row under a per-column direction vector into
// a byte string whose unsigned lexicographic order matches the row's logical
// order, and back. It is the codec collaborator of the Managed One-Sided
// Top-N State: the state table's keys, on disk and in the cache, are always
// OrderedRow encodings, never raw rows.
package orderedrow

import (
	"bytes"

	"github.com/pkg/errors"
)

// OrderedRow is a Row plus the direction vector that defines its total
// order. Two OrderedRows with different direction vectors are not
// comparable; callers are expected to share one direction vector per
// keyspace partition.
type OrderedRow struct {
	Row        Row
	Directions []Direction
}

// New pairs a Row with the direction vector that orders it.
func New(row Row, directions []Direction) OrderedRow {
	return OrderedRow{Row: row, Directions: directions}
}

// Compare returns a negative number if a sorts before b, zero if they are
// equal, and a positive number if a sorts after b, under their (shared)
// direction vector.
func Compare(a, b OrderedRow) int {
	n := len(a.Row)
	if len(b.Row) < n {
		n = len(b.Row)
	}
	for i := 0; i < n; i++ {
		c := compareValue(a.Row[i], b.Row[i])
		if a.Directions[i] == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return len(a.Row) - len(b.Row)
}

// Equal reports whether a and b encode to the same key.
func Equal(a, b OrderedRow) bool { return Compare(a, b) == 0 }

func compareValue(a, b Value) int {
	at, bt := valueTag(a.Kind), valueTag(b.Kind)
	if at != bt {
		if at < bt {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNull:
		return 0
	case KindBool:
		switch {
		case a.B == b.B:
			return 0
		case !a.B:
			return -1
		default:
			return 1
		}
	case KindInt64:
		switch {
		case a.I64 == b.I64:
			return 0
		case a.I64 < b.I64:
			return -1
		default:
			return 1
		}
	case KindUint64:
		switch {
		case a.U64 == b.U64:
			return 0
		case a.U64 < b.U64:
			return -1
		default:
			return 1
		}
	case KindUint256:
		return a.U256.Cmp(b.U256)
	case KindFloat64:
		switch {
		case a.F64 == b.F64:
			return 0
		case a.F64 < b.F64:
			return -1
		default:
			return 1
		}
	case KindString:
		return bytes.Compare([]byte(a.Str), []byte(b.Str))
	case KindBytes:
		return bytes.Compare(a.Byt, b.Byt)
	default:
		return 0
	}
}

// EncodeForward returns the byte string whose unsigned lexicographic order
// equals Compare's order.
func (r OrderedRow) EncodeForward() ([]byte, error) {
	var buf bytes.Buffer
	for i, v := range r.Row {
		col, err := encodeValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "orderedrow: encode column %d", i)
		}
		if i < len(r.Directions) && r.Directions[i] == Descending {
			invertInPlace(col)
		}
		buf.Write(col)
	}
	return buf.Bytes(), nil
}

// EncodeReversed returns the bitwise inversion of EncodeForward: a forward
// scan over EncodeReversed keys yields logically-descending row order.
func (r OrderedRow) EncodeReversed() ([]byte, error) {
	fwd, err := r.EncodeForward()
	if err != nil {
		return nil, err
	}
	invertInPlace(fwd)
	return fwd, nil
}

func invertInPlace(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}
