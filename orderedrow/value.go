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
	"fmt"

	"github.com/holiman/uint256"
)

// Kind tags the logical type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindUint256
	KindFloat64
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindUint256:
		return "uint256"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one column of a Row. The zero Value is NULL.
type Value struct {
	Kind Kind
	B    bool
	I64  int64
	U64  uint64
	U256 *uint256.Int
	F64  float64
	Str  string
	Byt  []byte
}

func Null() Value               { return Value{Kind: KindNull} }
func Bool(v bool) Value         { return Value{Kind: KindBool, B: v} }
func Int64(v int64) Value       { return Value{Kind: KindInt64, I64: v} }
func Uint64(v uint64) Value     { return Value{Kind: KindUint64, U64: v} }
func Float64(v float64) Value   { return Value{Kind: KindFloat64, F64: v} }
func String(v string) Value     { return Value{Kind: KindString, Str: v} }
func Bytes(v []byte) Value      { return Value{Kind: KindBytes, Byt: v} }
func Uint256(v *uint256.Int) Value {
	return Value{Kind: KindUint256, U256: v}
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Row is an ordered tuple of typed column values.
type Row []Value

func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !valueEqual(r[i], o[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.B == b.B
	case KindInt64:
		return a.I64 == b.I64
	case KindUint64:
		return a.U64 == b.U64
	case KindUint256:
		if a.U256 == nil || b.U256 == nil {
			return a.U256 == b.U256
		}
		return a.U256.Eq(b.U256)
	case KindFloat64:
		return a.F64 == b.F64
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		return string(a.Byt) == string(b.Byt)
	default:
		return false
	}
}
