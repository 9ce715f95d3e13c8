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

import (
	"fmt"

	"github.com/go-stack/stack"
)

// assert panics with a caller stack when cond is false. It guards caller
// contract violations spec.md places out of scope for error returns (a
// non-positive Capacity, a delete of a total_count already at zero,
// FillInCache with a dirty delta buffer) - programmer errors, not runtime
// conditions a well-behaved caller can hit.
func assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprintf("topn: invariant violated: %s\n%s", fmt.Sprintf(format, args...), stack.Trace().TrimRuntime()))
}
