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

package kv

import "fmt"

// PartitionFlags describes how a partition (an MDBX DBI, or a memkv
// bucket) should be opened. It plays the same role erigon-lib/kv's
// TableCfg/TableFlags pair plays for its much larger bucket registry: a
// small, explicit record of per-partition options instead of scattering
// magic flag literals at every call site.
type PartitionFlags uint8

const (
	// PartitionDefault is an ordinary ordered keyspace.
	PartitionDefault PartitionFlags = 0
	// PartitionDupSort marks a partition where duplicate keys are expected
	// and should be kept, sorted by value, rather than overwritten. No
	// component in this module opens a partition with this flag yet; it
	// is kept as an onramp for a future multi-valued state table.
	PartitionDupSort PartitionFlags = 1 << iota
)

// PartitionName returns the canonical partition name an MTS instance
// stores its rows under: one partition per logical Top-N cache, so two
// MTS instances (e.g. "top 10 latencies" and "bottom 10 scores") never
// collide in the same store.
func PartitionName(namespace, name string) string {
	return fmt.Sprintf("%s/%s", namespace, name)
}
