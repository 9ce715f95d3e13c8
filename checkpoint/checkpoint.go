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

// Package checkpoint persists the one field spec.md deliberately keeps
// outside the MTS's own state: total_count, alongside the epoch it was
// last flushed at. The operator embedding an MTS is expected to load this
// file before constructing the MTS and write it back after every
// successful Flush.
package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Record is the checkpointed state for one partition.
type Record struct {
	Partition  string `yaml:"partition"`
	Epoch      uint64 `yaml:"epoch"`
	TotalCount uint64 `yaml:"total_count"`
}

// Store reads and writes Records as YAML files under dir, one file per
// partition, with advisory locking so a concurrent reader never observes a
// half-written file.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(partition string) string {
	return filepath.Join(s.dir, partition+".checkpoint.yaml")
}

// Load returns a Record holding only the partition name (Epoch 0,
// TotalCount 0) if no checkpoint file exists yet - a fresh partition, not
// an error.
func (s *Store) Load(partition string) (Record, error) {
	path := s.path(partition)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return Record{}, errors.Wrapf(err, "checkpoint: lock %s", path)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Record{Partition: partition}, nil
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "checkpoint: read %s", path)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, errors.Wrapf(err, "checkpoint: parse %s", path)
	}
	return rec, nil
}

// Save atomically replaces the checkpoint file for rec.Partition: it
// writes to a temp file in the same directory (so the final rename is
// same-filesystem and therefore atomic) and renames it into place only
// after the write and fsync succeed, so a crash mid-write never leaves a
// truncated checkpoint for Load to trip over.
func (s *Store) Save(rec Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "checkpoint: mkdir %s", s.dir)
	}
	path := s.path(rec.Partition)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "checkpoint: lock %s", path)
	}
	defer lock.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "checkpoint: marshal")
	}

	tmp, err := os.CreateTemp(s.dir, rec.Partition+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "checkpoint: create temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "checkpoint: rename into %s", path)
	}
	return nil
}
