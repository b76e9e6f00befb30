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

package scheduler

import (
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/metrics"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

type bucket struct {
	name  string
	depth int
	qos   []string
	count int
}

// Buckets limit the outstanding priority reservations per QOS bucket and per partition.
// A reservation that was charged remembers the charge and returns it when it is released.
type Buckets struct {
	buckets   []*bucket
	partition map[string]int
}

func NewBuckets(conf []configs.QOSBucketConfig) *Buckets {
	b := &Buckets{
		partition: make(map[string]int),
	}
	for _, bc := range conf {
		b.buckets = append(b.buckets, &bucket{
			name:  bc.Name,
			depth: bc.RsvDepth,
			qos:   bc.QOS,
		})
	}
	return b
}

// IndexFor returns the first bucket that lists the QOS, -1 if there is none.
// A job without QOS only matches a bucket open to all QOS.
func (b *Buckets) IndexFor(qos *objects.QOS) int {
	for i, bk := range b.buckets {
		if slices.Contains(bk.qos, configs.AllQOS) {
			return i
		}
		if qos != nil && slices.Contains(bk.qos, qos.Name) {
			return i
		}
	}
	return -1
}

func (b *Buckets) Name(index int) string {
	if index < 0 || index >= len(b.buckets) {
		return ""
	}
	return b.buckets[index].name
}

func (b *Buckets) Depth(index int) int {
	if index < 0 || index >= len(b.buckets) {
		return 0
	}
	return b.buckets[index].depth
}

func (b *Buckets) Count(index int) int {
	if index < 0 || index >= len(b.buckets) {
		return 0
	}
	return b.buckets[index].count
}

func (b *Buckets) PartitionCount(partition string) int {
	return b.partition[partition]
}

// HasCapacity returns true if the bucket has a free slot.
func (b *Buckets) HasCapacity(index int) bool {
	return b.Count(index) < b.Depth(index)
}

// Charge books a slot in the bucket, and in the partition when set, for the reservation.
// A reservation is charged at most once.
func (b *Buckets) Charge(rsv *objects.Reservation, index int, partition string) bool {
	if rsv == nil || rsv.BucketIndex >= 0 || index < 0 || index >= len(b.buckets) {
		return false
	}
	bk := b.buckets[index]
	bk.count++
	rsv.BucketIndex = index
	rsv.BucketPartition = partition
	if partition != "" {
		b.partition[partition]++
		metrics.GetPlacementMetrics().SetPartitionReservations(partition, b.partition[partition])
	}
	metrics.GetPlacementMetrics().SetBucketOccupancy(bk.name, bk.count)
	log.Log(log.Gate).Debug("bucket slot charged",
		zap.String("bucket", bk.name),
		zap.Int("count", bk.count),
		zap.Int("depth", bk.depth),
		zap.String("partition", partition),
		zap.String("reservationID", rsv.ID))
	return true
}

// Release returns the slots charged for the reservation. Counters never drop below zero.
func (b *Buckets) Release(rsv *objects.Reservation) bool {
	if rsv == nil || rsv.BucketIndex < 0 || rsv.BucketIndex >= len(b.buckets) {
		return false
	}
	bk := b.buckets[rsv.BucketIndex]
	if bk.count > 0 {
		bk.count--
	}
	if p := rsv.BucketPartition; p != "" {
		if b.partition[p] > 0 {
			b.partition[p]--
		}
		metrics.GetPlacementMetrics().SetPartitionReservations(p, b.partition[p])
	}
	metrics.GetPlacementMetrics().SetBucketOccupancy(bk.name, bk.count)
	rsv.BucketIndex = -1
	rsv.BucketPartition = ""
	return true
}
