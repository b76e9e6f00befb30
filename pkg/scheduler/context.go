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
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/events"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/scheduler/calendar"
	"github.com/apache/yunikorn-placement/pkg/scheduler/nodeset"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
	"github.com/apache/yunikorn-placement/pkg/scheduler/preemption"
	"github.com/apache/yunikorn-placement/pkg/trace"
)

const (
	// a reservation changed within this period blocks a new priority reservation
	priorityRsvMinAge = 120 * time.Second
	rateLimitInterval = 10 * time.Second
)

// Context is the placement core of one scheduling loop: the cluster tables, the calendar primitives,
// the preemption finder with its cache and the reservation buckets.
// The scheduling loop calls it from one goroutine, nothing is locked.
type Context struct {
	cluster  *objects.Cluster
	calendar *calendar.Calendar
	selector *nodeset.Selector
	finder   *preemption.Finder
	buckets  *Buckets
	sink     events.Sink
	trace    trace.PlacementTraceContext

	// soft policy scheduling cycle of the loop
	softPolicyCycle bool
	// a hard policy enabled reservation exists, jobs are not deferred in a soft cycle
	hardPolicyRsv bool
}

// NewContext builds the tables from the placement config. A nil sink drops all events,
// a nil tracer uses the opentracing global tracer.
func NewContext(conf *configs.PlacementConfig, now time.Time, sink events.Sink, tracer opentracing.Tracer) (*Context, error) {
	cluster, err := objects.NewCluster(conf, now)
	if err != nil {
		return nil, err
	}
	if err = log.ParseLevels(cluster.Config.LogLevels); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = events.NopSink
	}
	selector := nodeset.NewSelector(cluster.Config.MaxNodeSets)
	cal := calendar.New(cluster, selector, sink)
	ctx := &Context{
		cluster:  cluster,
		calendar: cal,
		selector: selector,
		finder:   preemption.NewFinder(cluster, preemption.NewCache(), cal),
		buckets:  NewBuckets(conf.QOSBuckets),
		sink:     sink,
		trace:    trace.NewPlacementTraceContext(tracer, false),
	}
	log.Log(log.Core).Info("placement context created",
		zap.Int("partitions", len(cluster.GetPartitions())),
		zap.Int("buckets", len(conf.QOSBuckets)),
		zap.String("mode", cluster.Config.Mode),
		zap.String("checksum", conf.Checksum))
	return ctx, nil
}

func (ctx *Context) GetCluster() *objects.Cluster {
	return ctx.cluster
}

func (ctx *Context) GetCalendar() *calendar.Calendar {
	return ctx.calendar
}

func (ctx *Context) GetFinder() *preemption.Finder {
	return ctx.finder
}

func (ctx *Context) GetBuckets() *Buckets {
	return ctx.buckets
}

func (ctx *Context) conf() *configs.SchedulerSection {
	return &ctx.cluster.Config
}

// NextIteration starts a scheduling pass. Cached preemption candidates of the previous pass become stale.
func (ctx *Context) NextIteration(now time.Time) {
	ctx.cluster.NextIteration(now)
	log.Log(log.Core).Debug("scheduling iteration started",
		zap.Int64("iteration", ctx.cluster.Iteration),
		zap.Time("now", now))
}

// SetPolicyCycle tells the core whether the loop runs its soft policy cycle and whether a hard policy
// enabled reservation exists. Jobs that cannot be reserved in that case are not deferred.
func (ctx *Context) SetPolicyCycle(soft, hardPolicyRsv bool) {
	ctx.softPolicyCycle = soft
	ctx.hardPolicyRsv = hardPolicyRsv
}

// ReleaseReservation releases the reservation and returns its bucket slots.
func (ctx *Context) ReleaseReservation(rsv *objects.Reservation) bool {
	if rsv == nil {
		return false
	}
	ctx.buckets.Release(rsv)
	return ctx.calendar.Release(rsv)
}

// ReleasePriorityReservations releases the not yet started priority reservations in the partitions
// using the current highest reservation policy, they are recreated in priority order each pass.
// It returns the number of released reservations.
func (ctx *Context) ReleasePriorityReservations() int {
	released := 0
	for _, rsv := range ctx.cluster.GetReservations() {
		if rsv.Type != objects.RsvTypePriority || !rsv.Start.After(ctx.cluster.Now) {
			continue
		}
		// linked reservations go with their master
		if job := ctx.cluster.GetJob(rsv.JobID); job == nil || job.Rsv != rsv {
			continue
		}
		p := ctx.cluster.GetPartition(rsv.Partition)
		if p == nil || p.ReservationPolicy != configs.ReservationCurrentHighest {
			continue
		}
		if ctx.ReleaseReservation(rsv) {
			released++
		}
	}
	if released > 0 {
		log.Log(log.Core).Debug("priority reservations released",
			zap.Int("count", released))
	}
	return released
}
