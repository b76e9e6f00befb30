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

package calendar

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/events"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/metrics"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

// Commit registers an active reservation for the job. The bound tasks of every requirement must equal
// the requested task count. The reservation is not attached to the job, the caller decides which
// reservation the job keeps.
func (c *Calendar) Commit(job *objects.Job, partition string, allocs []*objects.ReqAlloc, start time.Time, rsvType objects.ReservationType) (*objects.Reservation, error) {
	if err := validateAllocs(job, allocs); err != nil {
		return nil, err
	}
	rsv := objects.NewJobReservation(job, rsvType, partition, start, allocs, c.cluster.Now)
	rsv.Priority = job.Priority(partition)
	if err := c.register(rsv); err != nil {
		return nil, err
	}
	log.Log(log.Calendar).Info("reservation committed",
		zap.String("jobID", job.ID),
		zap.String("reservationID", rsv.ID),
		zap.Stringer("type", rsvType),
		zap.String("partition", partition),
		zap.Time("start", rsv.Start),
		zap.Int("tasks", rsv.TaskCount()),
		zap.Stringer("nodes", rsv.Nodes()))
	c.sink.Publish(events.CreateReservationEventRecord(rsv.ID, job.ID, "reservation created", events.ChangeAdd, rsvType.String()))
	return rsv, nil
}

// CommitSynchronized registers one reservation per requirement, all starting together. The first
// reservation is the master, the others are linked to it and released with it.
func (c *Calendar) CommitSynchronized(job *objects.Job, partition string, allocs []*objects.ReqAlloc, start time.Time, rsvType objects.ReservationType) (*objects.Reservation, error) {
	if err := validateAllocs(job, allocs); err != nil {
		return nil, err
	}
	var master *objects.Reservation
	for i, alloc := range allocs {
		rsv := objects.NewJobReservation(job, rsvType, partition, start, []*objects.ReqAlloc{alloc}, c.cluster.Now)
		rsv.Priority = job.Priority(partition)
		if i > 0 {
			rsv.Name = job.ID + "." + strconv.Itoa(i)
		}
		if err := c.register(rsv); err != nil {
			if master != nil {
				c.Release(master)
			}
			return nil, err
		}
		if master == nil {
			master = rsv
			continue
		}
		master.Linked = append(master.Linked, rsv)
	}
	log.Log(log.Calendar).Info("synchronized reservation committed",
		zap.String("jobID", job.ID),
		zap.String("reservationID", master.ID),
		zap.Int("linked", len(master.Linked)),
		zap.Time("start", master.Start),
		zap.Int("tasks", master.TotalTaskCount()))
	c.sink.Publish(events.CreateReservationEventRecord(master.ID, job.ID, "synchronized reservation created", events.ChangeAdd, rsvType.String()))
	return master, nil
}

func (c *Calendar) register(rsv *objects.Reservation) error {
	if err := c.cluster.AddReservation(rsv); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCommitFailed, err)
	}
	if err := rsv.Commit(); err != nil {
		c.cluster.RemoveReservation(rsv)
		return fmt.Errorf("%w: %v", common.ErrCommitFailed, err)
	}
	return nil
}

func validateAllocs(job *objects.Job, allocs []*objects.ReqAlloc) error {
	if job == nil || len(allocs) == 0 {
		return common.ErrMalformedInput
	}
	if len(allocs) != len(job.Requirements) {
		return fmt.Errorf("%w: %d allocations for %d requirements", common.ErrCommitFailed, len(allocs), len(job.Requirements))
	}
	for i, alloc := range allocs {
		if alloc == nil || alloc.Nodes.TaskCount() != job.Requirements[i].TaskCount {
			return fmt.Errorf("%w: requirement %d bound task count does not match request", common.ErrCommitFailed, i)
		}
	}
	return nil
}

// Release removes the reservation and its linked reservations from the nodes and detaches it from its job.
// Releasing a released reservation is a no-op and returns false.
func (c *Calendar) Release(rsv *objects.Reservation) bool {
	if rsv == nil || rsv.IsReleased() {
		return false
	}
	for _, linked := range rsv.Linked {
		c.Release(linked)
	}
	c.cluster.RemoveReservation(rsv)
	if err := rsv.Release(); err != nil {
		return false
	}
	if job := c.cluster.GetJob(rsv.JobID); job != nil && job.Rsv == rsv {
		job.Rsv = nil
	}
	log.Log(log.Calendar).Info("reservation released",
		zap.String("reservationID", rsv.ID),
		zap.String("name", rsv.Name),
		zap.String("jobID", rsv.JobID))
	c.sink.Publish(events.CreateReservationEventRecord(rsv.ID, rsv.JobID, "reservation released", events.ChangeRemove, events.Empty))
	return true
}

// Hold places an administrative hold on the job. A defer hold expires after the configured defer time.
func (c *Calendar) Hold(job *objects.Job, hold objects.HoldType, reason, message string) {
	if job == nil {
		return
	}
	var until time.Time
	if hold == objects.HoldDefer {
		until = common.AddDuration(c.cluster.Now, c.cluster.Config.DeferTime)
	}
	job.SetHold(hold, until, reason, message)
	log.Log(log.Calendar).Info("job hold set",
		zap.String("jobID", job.ID),
		zap.Stringer("hold", hold),
		zap.String("reason", reason),
		zap.String("message", message))
	metrics.GetPlacementMetrics().IncHold(reason)
	c.sink.Publish(events.CreateJobEventRecord(job.ID, message, events.ChangeSet, reason))
}
