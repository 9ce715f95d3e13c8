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

// Package topnmetrics is the observability collaborator for an MTS:
// Prometheus gauges/counters keyed by partition, plus a compact record of
// which epochs have seen an eviction, kept as a roaring bitmap since epoch
// numbers are dense, monotonically increasing integers and a diagnostic
// dump ("which of the last million epochs evicted anything") is exactly
// roaring's sweet spot.
package topnmetrics

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder satisfies topn.MetricsRecorder.
type Recorder struct {
	cacheLen   *prometheus.GaugeVec
	totalCount *prometheus.GaugeVec
	evictions  *prometheus.CounterVec
	flushSecs  *prometheus.HistogramVec

	currentEpoch uint64
	evictedEpochs *roaring.Bitmap
}

// New registers the MTS metric family on reg and returns a Recorder. reg
// may be prometheus.NewRegistry() in tests, or prometheus.DefaultRegisterer
// in a process that also serves /metrics.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		cacheLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "topn_cache_len",
			Help: "Number of rows currently cached by the managed top-n state.",
		}, []string{"partition"}),
		totalCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "topn_total_count",
			Help: "Size of the full multiset backing the managed top-n state.",
		}, []string{"partition"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topn_evictions_total",
			Help: "Rows evicted from the cache (not the store) to stay within capacity.",
		}, []string{"partition"}),
		flushSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topn_flush_duration_seconds",
			Help:    "Wall-clock time spent committing a flush to the state store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"partition"}),
		evictedEpochs: roaring.New(),
	}
	for _, c := range []prometheus.Collector{r.cacheLen, r.totalCount, r.evictions, r.flushSecs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) SetCacheLen(partition string, n int) {
	r.cacheLen.WithLabelValues(partition).Set(float64(n))
}

func (r *Recorder) SetTotalCount(partition string, n uint64) {
	r.totalCount.WithLabelValues(partition).Set(float64(n))
}

func (r *Recorder) IncEvictions(partition string, delta int) {
	if delta <= 0 {
		return
	}
	r.evictions.WithLabelValues(partition).Add(float64(delta))
	r.evictedEpochs.Add(uint32(r.currentEpoch))
}

func (r *Recorder) ObserveFlushSeconds(partition string, seconds float64) {
	r.flushSecs.WithLabelValues(partition).Observe(seconds)
}

// NoteEpoch records the epoch that subsequent IncEvictions calls belong to,
// so EvictedEpochs can report which flushes actually evicted something.
func (r *Recorder) NoteEpoch(epoch uint64) { r.currentEpoch = epoch }

// EvictedEpochs returns the epochs (truncated to their low 32 bits, so
// epochs at or above 2^32 are reported modulo 2^32) at which at least one
// cache eviction occurred.
func (r *Recorder) EvictedEpochs() []uint32 {
	return r.evictedEpochs.ToArray()
}
