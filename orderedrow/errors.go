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

import "fmt"

// CodecError is returned by Decode (and, in principle, by Encode) when the
// input bytes cannot be interpreted as an OrderedRow under the direction
// vector in effect.
type CodecError struct {
	Offset int
	Reason string
	Cause  error
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("orderedrow: codec error at offset %d: %s: %v", e.Offset, e.Reason, e.Cause)
	}
	return fmt.Sprintf("orderedrow: codec error at offset %d: %s", e.Offset, e.Reason)
}

func (e *CodecError) Unwrap() error { return e.Cause }

func codecErrorf(offset int, cause error, format string, args ...any) *CodecError {
	return &CodecError{Offset: offset, Reason: fmt.Sprintf(format, args...), Cause: cause}
}
