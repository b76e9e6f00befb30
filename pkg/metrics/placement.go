/*
 Licensed to the Apache Software Foundation (ASF) under one
 or more contributor license agreements.  See the NOTICE file
 distributed with this work for additional information
 regarding copyright ownership.  The ASF licenses this file
 to you under the Apache License, Version 2.0 (the
 "License"); you may not use this file except in compliance
 with the License.  You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/log"
)

// reservation outcomes
const (
	RsvCreated  = "created"
	RsvReleased = "released"
	RsvDelayed  = "delayed"
	RsvFailed   = "failed"
	RsvForced   = "forced"
	RsvKept     = "kept"
)

// priority reservation gate outcomes
const (
	GateGranted    = "granted"
	GateThreshold  = "threshold"
	GateRejected   = "rejected"
	GateBucketFull = "bucket_full"
)

// PlacementMetrics to declare placement core metrics
type PlacementMetrics struct {
	reservation       *prometheus.CounterVec
	gate              *prometheus.CounterVec
	hold              *prometheus.CounterVec
	bucketOccupancy   *prometheus.GaugeVec
	partitionRsvCount *prometheus.GaugeVec
	preemptionCache   *prometheus.CounterVec
	nodeSetSelection  *prometheus.CounterVec
	searchLatency     prometheus.Histogram
	preemptLatency    prometheus.Histogram
}

// InitPlacementMetrics to initialize placement metrics
func InitPlacementMetrics() *PlacementMetrics {
	s := &PlacementMetrics{}

	s.reservation = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "reservation_total",
			Help:      "Total number of reservation operations. Result includes `created`, `released`, `delayed`, `failed`, `forced` and `kept`.",
		}, []string{"result"})

	s.gate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "priority_reservation_attempt_total",
			Help:      "Total number of priority reservation decisions. Result includes `granted`, `threshold`, `rejected` and `bucket_full`.",
		}, []string{"result"})

	s.hold = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "job_hold_total",
			Help:      "Total number of holds placed on jobs by the placement core, by hold reason.",
		}, []string{"reason"})

	s.bucketOccupancy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "qos_bucket_reservations",
			Help:      "Outstanding priority reservations per QOS bucket.",
		}, []string{"bucket"})

	s.partitionRsvCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "partition_bucket_reservations",
			Help:      "Outstanding priority reservations per partition.",
		}, []string{"partition"})

	s.preemptionCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "preemption_cache_total",
			Help:      "Preemption candidate cache lookups. Result includes `hit` and `refresh`.",
		}, []string{"result"})

	s.nodeSetSelection = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "nodeset_selection_total",
			Help:      "Node set selections by selection mode and result.",
		}, []string{"mode", "result"})

	s.searchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "earliest_start_search_latency_seconds",
			Help:      "Latency of the earliest start time search for one job shape, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 10, 6), // start from 0.1ms
		},
	)

	s.preemptLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: PlacementSubsystem,
			Name:      "preemption_search_latency_seconds",
			Help:      "Latency of the preemption candidate search, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 10, 6),
		},
	)

	// Register the metrics
	var metricsList = []prometheus.Collector{
		s.reservation,
		s.gate,
		s.hold,
		s.bucketOccupancy,
		s.partitionRsvCount,
		s.preemptionCache,
		s.nodeSetSelection,
		s.searchLatency,
		s.preemptLatency,
	}
	for _, metric := range metricsList {
		if err := prometheus.Register(metric); err != nil {
			log.Log(log.Core).Warn("failed to register metrics collector", zap.Error(err))
		}
	}
	return s
}

func (m *PlacementMetrics) Reset() {
	m.reservation.Reset()
	m.gate.Reset()
	m.hold.Reset()
	m.bucketOccupancy.Reset()
	m.partitionRsvCount.Reset()
	m.preemptionCache.Reset()
	m.nodeSetSelection.Reset()
}

func (m *PlacementMetrics) IncReservation(result string) {
	m.reservation.With(prometheus.Labels{"result": result}).Inc()
}

func (m *PlacementMetrics) IncGateResult(result string) {
	m.gate.With(prometheus.Labels{"result": result}).Inc()
}

func (m *PlacementMetrics) IncHold(reason string) {
	m.hold.With(prometheus.Labels{"reason": reason}).Inc()
}

func (m *PlacementMetrics) SetBucketOccupancy(bucket string, count int) {
	m.bucketOccupancy.With(prometheus.Labels{"bucket": bucket}).Set(float64(count))
}

func (m *PlacementMetrics) SetPartitionReservations(partition string, count int) {
	m.partitionRsvCount.With(prometheus.Labels{"partition": partition}).Set(float64(count))
}

func (m *PlacementMetrics) IncPreemptionCacheHit() {
	m.preemptionCache.With(prometheus.Labels{"result": "hit"}).Inc()
}

func (m *PlacementMetrics) IncPreemptionCacheRefresh() {
	m.preemptionCache.With(prometheus.Labels{"result": "refresh"}).Inc()
}

func (m *PlacementMetrics) IncNodeSetSelection(mode string, ok bool) {
	result := "selected"
	if !ok {
		result = "failed"
	}
	m.nodeSetSelection.With(prometheus.Labels{"mode": mode, "result": result}).Inc()
}

func (m *PlacementMetrics) ObserveSearchLatency(start time.Time) {
	m.searchLatency.Observe(SinceInSeconds(start))
}

func (m *PlacementMetrics) ObservePreemptionLatency(start time.Time) {
	m.preemptLatency.Observe(SinceInSeconds(start))
}
