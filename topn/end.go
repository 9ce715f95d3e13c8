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

package topn

// End selects which end of the full multiset an MTS tracks: the K smallest
// rows (EndMin) or the K largest (EndMax). It plays the role the original
// Rust source gave a const generic parameter; Go has none, so it is an
// ordinary runtime enum threaded through Config instead.
type End uint8

const (
	EndMin End = iota
	EndMax
)

func (e End) String() string {
	switch e {
	case EndMin:
		return "min"
	case EndMax:
		return "max"
	default:
		return "unknown"
	}
}

// reversed reports whether this End stores its keys bitwise-inverted
// (EncodeReversed) so that a forward-only store iterator can still serve
// rows in order-of-nearness-to-E.
func (e End) reversed() bool { return e == EndMax }
