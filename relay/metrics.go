// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/kawa/common"
	"github.com/packetd/kawa/internal/labels"
)

var (
	bytesInTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "relay",
			Name:      "bytes_in_total",
			Help:      "Bytes read from the source total",
		},
	)

	bytesOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "relay",
			Name:      "bytes_out_total",
			Help:      "Bytes written to the sink total",
		},
	)

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Fully relayed messages total",
		},
		[]string{"role"},
	)

	parseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "relay",
			Name:      "parse_errors_total",
			Help:      "Protocol errors aborting the relay total",
		},
		[]string{"role"},
	)
)

// seriesCache 以 label 集合哈希缓存 series 句柄 绕开热路径上的
// WithLabelValues 查找开销
type seriesCache struct {
	mut sync.RWMutex
	m   map[uint64]prometheus.Counter
	vec *prometheus.CounterVec
}

func newSeriesCache(vec *prometheus.CounterVec) *seriesCache {
	return &seriesCache{
		m:   make(map[uint64]prometheus.Counter),
		vec: vec,
	}
}

func (sc *seriesCache) get(lbs labels.Labels) prometheus.Counter {
	hash := lbs.Hash()

	sc.mut.RLock()
	counter, ok := sc.m[hash]
	sc.mut.RUnlock()
	if ok {
		return counter
	}

	sc.mut.Lock()
	defer sc.mut.Unlock()
	if counter, ok = sc.m[hash]; ok {
		return counter
	}
	counter = sc.vec.WithLabelValues(lbs.Values()...)
	sc.m[hash] = counter
	return counter
}

var (
	messagesCache    = newSeriesCache(messagesTotal)
	parseErrorsCache = newSeriesCache(parseErrorsTotal)
)

func roleLabels(role string) labels.Labels {
	if role == "" {
		role = "request"
	}
	return labels.Labels{{Name: "role", Value: role}}
}

func incMessage(role string) {
	messagesCache.get(roleLabels(role)).Inc()
}

func incParseError(role string) {
	parseErrorsCache.get(roleLabels(role)).Inc()
}
