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

package orderedrow

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// EncodeValue serializes row as a self-describing byte string: a varint
// column count followed by each column's tagged encoding. Unlike
// EncodeForward/EncodeReversed it is not order-preserving (no column is
// ever inverted) - it exists for a CacheEntry's payload Row, which a state
// table stores and returns but never compares as a key, so byte order
// carries no meaning and a plain column count is all decoding needs.
func EncodeValue(row Row) ([]byte, error) {
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(row)))
	buf := append([]byte(nil), countBuf[:n]...)
	for i, v := range row {
		col, err := encodeValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "orderedrow: encode value column %d", i)
		}
		buf = append(buf, col...)
	}
	return buf, nil
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(buf []byte) (Row, error) {
	count, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, codecErrorf(0, nil, "truncated value: missing column count")
	}
	off := n
	row := make(Row, 0, count)
	for i := uint64(0); i < count; i++ {
		v, next, err := decodeColumn(buf, off, 0)
		if err != nil {
			return nil, codecErrorf(off, err, "decode value column %d", i)
		}
		row = append(row, v)
		off = next
	}
	if off != len(buf) {
		return nil, codecErrorf(off, nil, "trailing bytes after decoding %d value columns", count)
	}
	return row, nil
}
