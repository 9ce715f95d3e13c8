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
	"math"

	"github.com/holiman/uint256"
)

// valueTag is the sort-order tag prefixing every encoded value: NULL always
// sorts first (tag 0), every other Kind gets a distinct, stable tag. Mixing
// Kinds within one logical column is not expected (a column has one type,
// possibly NULL), but the tags keep Compare and the byte encoding consistent
// even if it happens.
func valueTag(k Kind) byte { return byte(k) }

const (
	groupSize  = 8
	fullMarker = byte(0xFF)
)

// encodeValue appends the memcomparable encoding of v: a one-byte type tag
// followed by a fixed- or variable-length, order-preserving payload.
func encodeValue(v Value) ([]byte, error) {
	out := []byte{valueTag(v.Kind)}
	switch v.Kind {
	case KindNull:
		return out, nil
	case KindBool:
		if v.B {
			return append(out, 1), nil
		}
		return append(out, 0), nil
	case KindInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.I64)^(1<<63))
		return append(out, b[:]...), nil
	case KindUint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.U64)
		return append(out, b[:]...), nil
	case KindUint256:
		u := v.U256
		if u == nil {
			u = new(uint256.Int)
		}
		b := u.Bytes32()
		return append(out, b[:]...), nil
	case KindFloat64:
		bits := math.Float64bits(v.F64)
		if bits&(1<<63) != 0 {
			// Negative: invert everything so more-negative sorts first.
			bits = ^bits
		} else {
			// Non-negative: flip the sign bit so it sorts after negatives.
			bits |= 1 << 63
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		return append(out, b[:]...), nil
	case KindString:
		return encodeBytesGroups(out, []byte(v.Str)), nil
	case KindBytes:
		return encodeBytesGroups(out, v.Byt), nil
	default:
		return nil, codecErrorf(0, nil, "unknown value kind %d", v.Kind)
	}
}

// encodeBytesGroups implements the classic memcomparable variable-length
// encoding: the payload is split into 8-byte groups, the final (possibly
// partial) group is zero-padded, and every group is followed by a marker
// byte counting how many of its bytes are real data (0xFF for a full
// group). This is what keeps "ab" sorting before "abc" instead of the
// length-blind unsigned comparison putting "ab\x00..." ambiguously.
func encodeBytesGroups(out []byte, data []byte) []byte {
	for idx := 0; idx <= len(data); idx += groupSize {
		remain := len(data) - idx
		var pad int
		if remain >= groupSize {
			out = append(out, data[idx:idx+groupSize]...)
		} else {
			pad = groupSize - remain
			if remain > 0 {
				out = append(out, data[idx:]...)
			}
			for i := 0; i < pad; i++ {
				out = append(out, 0)
			}
		}
		out = append(out, fullMarker-byte(pad))
	}
	return out
}

// invertMask decides the byte-level XOR mask to apply while decoding one
// column. EncodeForward inverts a column's bytes when its Direction is
// Descending; EncodeReversed then inverts the *entire* row buffer again.
// Both inversions are plain byte-wise XOR with 0xFF, so they cancel out
// when a column is both Descending and stored in a reversed buffer -
// the net mask is 0xFF exactly when the two flags disagree.
func invertMask(descending, reversed bool) byte {
	if descending != reversed {
		return 0xFF
	}
	return 0x00
}

// decodeColumn reads one encoded column starting at buf[off], undoing mask
// (see invertMask) byte by byte, and returns the decoded value plus the
// offset just past the column.
func decodeColumn(buf []byte, off int, mask byte) (Value, int, error) {
	if off >= len(buf) {
		return Value{}, off, codecErrorf(off, nil, "truncated column: missing type tag")
	}
	kind := Kind(buf[off] ^ mask)
	off++
	switch kind {
	case KindNull:
		return Null(), off, nil
	case KindBool:
		if off >= len(buf) {
			return Value{}, off, codecErrorf(off, nil, "truncated bool")
		}
		b := buf[off] ^ mask
		return Bool(b != 0), off + 1, nil
	case KindInt64:
		u, next, err := decodeFixed64(buf, off, mask)
		if err != nil {
			return Value{}, off, err
		}
		return Int64(int64(u ^ (1 << 63))), next, nil
	case KindUint64:
		u, next, err := decodeFixed64(buf, off, mask)
		if err != nil {
			return Value{}, off, err
		}
		return Uint64(u), next, nil
	case KindUint256:
		if off+32 > len(buf) {
			return Value{}, off, codecErrorf(off, nil, "truncated uint256")
		}
		var b [32]byte
		for i := 0; i < 32; i++ {
			b[i] = buf[off+i] ^ mask
		}
		return Uint256(new(uint256.Int).SetBytes(b[:])), off + 32, nil
	case KindFloat64:
		bits, next, err := decodeFixed64(buf, off, mask)
		if err != nil {
			return Value{}, off, err
		}
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return Float64(math.Float64frombits(bits)), next, nil
	case KindString:
		raw, next, err := decodeBytesGroups(buf, off, mask)
		if err != nil {
			return Value{}, off, err
		}
		return String(string(raw)), next, nil
	case KindBytes:
		raw, next, err := decodeBytesGroups(buf, off, mask)
		if err != nil {
			return Value{}, off, err
		}
		return Bytes(raw), next, nil
	default:
		return Value{}, off, codecErrorf(off, nil, "unknown type tag %d", kind)
	}
}

func decodeFixed64(buf []byte, off int, mask byte) (uint64, int, error) {
	if off+8 > len(buf) {
		return 0, off, codecErrorf(off, nil, "truncated 8-byte value")
	}
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = buf[off+i] ^ mask
	}
	return binary.BigEndian.Uint64(b[:]), off + 8, nil
}

func decodeBytesGroups(buf []byte, off int, mask byte) ([]byte, int, error) {
	var out []byte
	for {
		if off+groupSize+1 > len(buf) {
			return nil, off, codecErrorf(off, nil, "truncated byte group")
		}
		group := make([]byte, groupSize)
		for i := 0; i < groupSize; i++ {
			group[i] = buf[off+i] ^ mask
		}
		marker := buf[off+groupSize] ^ mask
		off += groupSize + 1
		pad := int(fullMarker - marker)
		if pad < 0 || pad > groupSize {
			return nil, off, codecErrorf(off, nil, "invalid group marker %d", marker)
		}
		out = append(out, group[:groupSize-pad]...)
		if pad != 0 {
			return out, off, nil
		}
	}
}

// Decode is the inverse of EncodeForward (reversed=false) or EncodeReversed
// (reversed=true), under the given direction vector.
func Decode(buf []byte, directions []Direction, reversed bool) (OrderedRow, error) {
	row := make(Row, 0, len(directions))
	off := 0
	for i, dir := range directions {
		start := off
		mask := invertMask(dir == Descending, reversed)
		v, next, err := decodeColumn(buf, off, mask)
		if err != nil {
			return OrderedRow{}, codecErrorf(start, err, "decode column %d", i)
		}
		row = append(row, v)
		off = next
	}
	if off != len(buf) {
		return OrderedRow{}, codecErrorf(off, nil, "trailing bytes after decoding %d columns", len(directions))
	}
	return OrderedRow{Row: row, Directions: directions}, nil
}
