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

// Package topnlog is the structured-logging collaborator for an MTS: a
// thin wrapper around zap that turns alternating key/value pairs into
// zap.Any fields, matching the keyvals-style call sites the topn package
// makes.
package topnlog

import "go.uber.org/zap"

// Logger satisfies topn.Logger and statetable's (future) logging needs.
type Logger struct {
	z *zap.SugaredLogger
}

// New wraps an existing zap.Logger.
func New(z *zap.Logger) Logger {
	return Logger{z: z.Sugar()}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() Logger { return Logger{z: zap.NewNop().Sugar()} }

func (l Logger) Debug(msg string, keyvals ...any) { l.z.Debugw(msg, keyvals...) }
func (l Logger) Warn(msg string, keyvals ...any)   { l.z.Warnw(msg, keyvals...) }
func (l Logger) Error(msg string, keyvals ...any)  { l.z.Errorw(msg, keyvals...) }
func (l Logger) Info(msg string, keyvals ...any)   { l.z.Infow(msg, keyvals...) }

// Sync flushes any buffered log entries; callers should defer it in main.
func (l Logger) Sync() error { return l.z.Sync() }
