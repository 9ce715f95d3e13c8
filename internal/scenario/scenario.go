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

// Package scenario reads a YAML description of a sequence of MTS
// operations and replays it against an MTS, printing each step's effect.
// It exists so spec.md's worked example (§8) and similar traces can be
// checked into the repo as data instead of Go code, and so cmd/topnstate
// has something concrete to drive.
package scenario

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/flowlake/topnstate/kv"
	"github.com/flowlake/topnstate/orderedrow"
	"github.com/flowlake/topnstate/topn"
)

// ColumnKind names the supported column types a scenario file can declare.
type ColumnKind string

const (
	ColumnString ColumnKind = "string"
	ColumnInt64  ColumnKind = "int64"
)

// Column is one entry of a scenario's row schema.
type Column struct {
	Kind      ColumnKind `yaml:"kind"`
	Direction string     `yaml:"direction"`
}

// Step is one operation in a scenario's replay sequence.
type Step struct {
	Op    string   `yaml:"op"`
	Row   []string `yaml:"row,omitempty"`
	Epoch uint64   `yaml:"epoch,omitempty"`
}

// Doc is the parsed form of a scenario file.
type Doc struct {
	Partition string   `yaml:"partition"`
	End       string   `yaml:"end"`
	Capacity  int      `yaml:"capacity"`
	Columns   []Column `yaml:"columns"`
	Steps     []Step   `yaml:"steps"`
}

// Parse reads a Doc from r.
func Parse(r io.Reader) (Doc, error) {
	var d Doc
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return Doc{}, errors.Wrap(err, "scenario: parse")
	}
	return d, nil
}

func (d Doc) directions() ([]orderedrow.Direction, error) {
	out := make([]orderedrow.Direction, len(d.Columns))
	for i, c := range d.Columns {
		switch c.Direction {
		case "asc", "":
			out[i] = orderedrow.Ascending
		case "desc":
			out[i] = orderedrow.Descending
		default:
			return nil, errors.Errorf("scenario: column %d: unknown direction %q", i, c.Direction)
		}
	}
	return out, nil
}

func (d Doc) end() (topn.End, error) {
	switch d.End {
	case "min", "":
		return topn.EndMin, nil
	case "max":
		return topn.EndMax, nil
	default:
		return 0, errors.Errorf("scenario: unknown end %q", d.End)
	}
}

func (d Doc) parseRow(values []string) (orderedrow.OrderedRow, error) {
	if len(values) != len(d.Columns) {
		return orderedrow.OrderedRow{}, errors.Errorf("scenario: row has %d values, schema has %d columns", len(values), len(d.Columns))
	}
	directions, err := d.directions()
	if err != nil {
		return orderedrow.OrderedRow{}, err
	}
	row := make(orderedrow.Row, len(values))
	for i, c := range d.Columns {
		switch c.Kind {
		case ColumnString:
			row[i] = orderedrow.String(values[i])
		case ColumnInt64:
			n, err := strconv.ParseInt(values[i], 10, 64)
			if err != nil {
				return orderedrow.OrderedRow{}, errors.Wrapf(err, "scenario: column %d value %q", i, values[i])
			}
			row[i] = orderedrow.Int64(n)
		default:
			return orderedrow.OrderedRow{}, errors.Errorf("scenario: column %d: unknown kind %q", i, c.Kind)
		}
	}
	return orderedrow.New(row, directions), nil
}

func formatRow(r orderedrow.Row) string {
	s := "("
	for i, v := range r {
		if i > 0 {
			s += ", "
		}
		switch v.Kind {
		case orderedrow.KindString:
			s += v.Str
		case orderedrow.KindInt64:
			s += strconv.FormatInt(v.I64, 10)
		default:
			s += fmt.Sprintf("%v", v)
		}
	}
	return s + ")"
}

// Run replays d's steps against a freshly constructed MTS over store,
// writing a line of output per step to w.
func Run(ctx context.Context, w io.Writer, store kv.Store, d Doc) error {
	directions, err := d.directions()
	if err != nil {
		return err
	}
	end, err := d.end()
	if err != nil {
		return err
	}
	m := topn.New(store, topn.Config{
		Partition:  d.Partition,
		Directions: directions,
		End:        end,
		Capacity:   d.Capacity,
	}, 0)

	// epoch tracks the epoch currently being accumulated toward the next
	// flush; a step's own Epoch field (so far only meaningful on flush)
	// overrides it when set, so a scenario file can still pin an exact
	// epoch per step if it needs to.
	var epoch uint64
	for i, step := range d.Steps {
		stepEpoch := epoch
		if step.Epoch != 0 {
			stepEpoch = step.Epoch
		}
		switch step.Op {
		case "insert":
			key, err := d.parseRow(step.Row)
			if err != nil {
				return errors.Wrapf(err, "step %d", i)
			}
			if err := m.Insert(ctx, key, key.Row, stepEpoch); err != nil {
				return errors.Wrapf(err, "step %d: insert", i)
			}
			fmt.Fprintf(w, "insert %s -> total_count=%d cache_len=%d\n", formatRow(key.Row), m.TotalCount(), m.CacheLen())
		case "delete":
			key, err := d.parseRow(step.Row)
			if err != nil {
				return errors.Wrapf(err, "step %d", i)
			}
			if _, _, err := m.Delete(ctx, key, key.Row, stepEpoch); err != nil {
				return errors.Wrapf(err, "step %d: delete", i)
			}
			fmt.Fprintf(w, "delete %s -> total_count=%d cache_len=%d\n", formatRow(key.Row), m.TotalCount(), m.CacheLen())
		case "flush":
			epoch = step.Epoch
			if err := m.Flush(ctx, step.Epoch); err != nil {
				return errors.Wrapf(err, "step %d: flush", i)
			}
			fmt.Fprintf(w, "flush epoch=%d -> cache_len=%d\n", step.Epoch, m.CacheLen())
		case "fill_in_cache":
			if err := m.FillInCache(ctx); err != nil {
				return errors.Wrapf(err, "step %d: fill_in_cache", i)
			}
			fmt.Fprintf(w, "fill_in_cache -> cache_len=%d\n", m.CacheLen())
		case "scan_and_merge":
			if err := m.ScanAndMerge(ctx, stepEpoch); err != nil {
				return errors.Wrapf(err, "step %d: scan_and_merge", i)
			}
			fmt.Fprintf(w, "scan_and_merge -> cache_len=%d\n", m.CacheLen())
		case "top":
			entry, ok := m.TopElement()
			if !ok {
				fmt.Fprintf(w, "top_element -> <empty>\n")
				continue
			}
			fmt.Fprintf(w, "top_element -> %s cache_len=%d\n", formatRow(entry.Key.Row), m.CacheLen())
		case "pop":
			entry, ok, err := m.PopTopElement(ctx, stepEpoch)
			if err != nil {
				return errors.Wrapf(err, "step %d: pop", i)
			}
			if !ok {
				fmt.Fprintf(w, "pop_top_element -> <empty>\n")
				continue
			}
			fmt.Fprintf(w, "pop_top_element -> %s total_count=%d cache_len=%d\n", formatRow(entry.Key.Row), m.TotalCount(), m.CacheLen())
		default:
			return errors.Errorf("step %d: unknown op %q", i, step.Op)
		}
	}
	return nil
}
