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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/events"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/metrics"
	"github.com/apache/yunikorn-placement/pkg/scheduler/calendar"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
	"github.com/apache/yunikorn-placement/pkg/trace"
)

const (
	holdReasonNoResources = "NoResources"
	allPartitions         = "ALL"
)

var noResourcesLog = log.RateLimitedLog(log.Reserve, rateLimitInterval)

// placement is the winning shape of a job with the selected nodes.
type placement struct {
	shape objects.Shape
	sel   *calendar.Selection
}

// Reserve creates the reservation for the job at the earliest time it fits, evaluating every shape of
// the job and keeping the one that completes first. An existing reservation is released first. Under per
// partition scheduling a reservation in another partition is kept when it starts earlier than the new one.
// Prerequisite jobs are reserved first and the job is not placed before they complete.
// A suppressed reservation is a probe: it is not announced and raises no delay events.
// Errors: ErrMalformedInput, ErrInfeasibleNow and ErrInfeasibleEver, wrapped with the hold message.
func (ctx *Context) Reserve(job *objects.Job, partition string, earliest time.Time, rsvType objects.ReservationType, suppress bool) error {
	return ctx.reserve(job, partition, earliest, rsvType, suppress, make(map[string]bool))
}

func (ctx *Context) reserve(job *objects.Job, partition string, earliest time.Time, rsvType objects.ReservationType, suppress bool, visiting map[string]bool) error {
	if job == nil || len(job.Requirements) == 0 {
		return common.ErrMalformedInput
	}
	if partition != "" && ctx.cluster.GetPartition(partition) == nil {
		return common.ErrMalformedInput
	}
	if job.HasFlag(objects.FlagPreempting) {
		log.Log(log.Reserve).Debug("job is preempting, reservation skipped",
			zap.String("jobID", job.ID))
		return nil
	}
	visiting[job.ID] = true

	state, info := trace.FailedState, ""
	//nolint:errcheck
	trace.StartSpanWrapper(ctx.trace, trace.JobLevel, trace.ReservePhase, job.ID)
	//nolint:errcheck
	defer func() { trace.FinishActiveSpanWrapper(ctx.trace, state, info) }()

	perPartition := ctx.conf().PerPartitionScheduling && partition != ""
	var stashed *objects.Reservation
	var previousEnd time.Time
	if job.Rsv != nil {
		previousEnd = job.Rsv.End
		if perPartition && job.Rsv.Partition != partition {
			stashed = job.Rsv
		} else {
			ctx.ReleaseReservation(job.Rsv)
		}
	}

	earliest = ctx.reserveDependencies(job, earliest, rsvType, suppress, visiting)

	best, err := ctx.bestPlacement(job, partition, earliest, rsvType)
	if err != nil {
		err = ctx.noPlacement(job, partition, rsvType, perPartition, previousEnd, stashed, err)
		if err != nil {
			info = err.Error()
		} else {
			state = trace.ReservedState
		}
		return err
	}
	rsv, err := ctx.commit(job, best, rsvType)
	if err != nil {
		log.Log(log.Reserve).Warn("reservation commit failed",
			zap.String("jobID", job.ID),
			zap.Error(err))
		ctx.keep(job, stashed, nil)
		metrics.GetPlacementMetrics().IncReservation(metrics.RsvFailed)
		info = err.Error()
		return err
	}
	kept := ctx.keep(job, stashed, rsv)
	job.CompletionTime = kept.End
	state = trace.ReservedState

	if kept != rsv {
		metrics.GetPlacementMetrics().IncReservation(metrics.RsvKept)
		return nil
	}
	metrics.GetPlacementMetrics().IncReservation(metrics.RsvCreated)
	fields := []zap.Field{
		zap.String("jobID", job.ID),
		zap.Int("tasks", rsv.TotalTaskCount()),
		zap.String("partition", rsv.Partition),
		zap.String("startIn", common.Relative(ctx.cluster.Now, rsv.Start)),
		zap.Time("start", rsv.Start),
		zap.Duration("wallclock", job.WallClock),
		zap.Strings("preemptees", rsv.Preemptees),
	}
	if suppress {
		log.Log(log.Reserve).Debug("job reserved", fields...)
		return nil
	}
	log.Log(log.Reserve).Info("job reserved", fields...)
	ctx.notifyDelay(job, rsv, previousEnd)
	return nil
}

// reserveDependencies raises earliest to the completion of every completion type prerequisite.
// Prerequisites without reservation are reserved first, a failure does not stop the job reservation.
func (ctx *Context) reserveDependencies(job *objects.Job, earliest time.Time, rsvType objects.ReservationType, suppress bool, visiting map[string]bool) time.Time {
	for _, dep := range job.Dependencies {
		if dep.Type != objects.DependCompletion && dep.Type != objects.DependSuccessfulCompletion {
			continue
		}
		prereq := ctx.cluster.GetJob(dep.JobID)
		if prereq == nil {
			log.Log(log.Reserve).Warn("cannot locate prerequisite job",
				zap.String("jobID", job.ID),
				zap.String("prerequisite", dep.JobID))
			continue
		}
		switch {
		case prereq.State == objects.JobCompleted || prereq.State == objects.JobRemoved:
			continue
		case prereq.Rsv != nil && !prereq.Rsv.IsReleased():
			earliest = common.MaxT(earliest, prereq.Rsv.End)
		case prereq.IsActive():
			earliest = common.MaxT(earliest, prereq.EndTime())
		case visiting[prereq.ID]:
			log.Log(log.Reserve).Warn("circular job dependency ignored",
				zap.String("jobID", job.ID),
				zap.String("prerequisite", prereq.ID))
		default:
			if err := ctx.reserve(prereq, "", earliest, rsvType, suppress, visiting); err == nil && prereq.Rsv != nil {
				earliest = common.MaxT(earliest, prereq.Rsv.End)
				continue
			}
			log.Log(log.Reserve).Warn("cannot create reservation for prerequisite job",
				zap.String("jobID", job.ID),
				zap.String("prerequisite", prereq.ID))
		}
	}
	return earliest
}

// bestPlacement runs the search for every shape and returns the shape with the earliest completion.
// The job shape is restored before returning.
func (ctx *Context) bestPlacement(job *objects.Job, partition string, earliest time.Time, rsvType objects.ReservationType) (*placement, error) {
	defaultShape := job.CurrentShape()
	defer restoreShape(job, defaultShape)

	var best *placement
	var bestEnd time.Time
	var lastErr error = common.ErrInfeasibleEver
	for i, shape := range job.ShapeList() {
		// zero shape fields fall back to the job defaults, not the previous shape
		restoreShape(job, defaultShape)
		job.ApplyShape(shape)
		sel, err := ctx.EarliestStart(job, partition, earliest, rsvType)
		if err != nil {
			log.Log(log.Reserve).Debug("shape cannot be placed",
				zap.String("jobID", job.ID),
				zap.Int("shape", i),
				zap.Int("tasks", shape.TaskCount),
				zap.Error(err))
			lastErr = err
			continue
		}
		end := common.AddDuration(sel.Start, job.WallClock)
		if best == nil || end.Before(bestEnd) {
			best = &placement{shape: job.CurrentShape(), sel: sel}
			bestEnd = end
		}
	}
	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

func restoreShape(job *objects.Job, shape objects.Shape) {
	if len(job.Requirements) > 0 {
		job.Requirements[0].TaskCount = shape.TaskCount
	}
	job.WallClock = shape.WallClock
}

// noPlacement handles a job that fits nowhere. A system job that must always be reserved gets a forced
// reservation. Other jobs are deferred unless the failure is expected in the current mode.
func (ctx *Context) noPlacement(job *objects.Job, partition string, rsvType objects.ReservationType, perPartition bool, previousEnd time.Time, stashed *objects.Reservation, cause error) error {
	if job.HasFlag(objects.FlagReserveAlways) && job.IsSystemJob() {
		rsv, err := ctx.forceReserve(job, partition)
		if kept := ctx.keep(job, stashed, rsv); kept != nil {
			job.CompletionTime = kept.End
		}
		return err
	}
	name := partition
	if name == "" {
		name = allPartitions
	}
	message := fmt.Sprintf(common.MsgCannotReserve, job.ID, name)
	if !previousEnd.IsZero() {
		message += " (" + fmt.Sprintf(common.MsgPreviouslyReserved, common.Relative(ctx.cluster.Now, previousEnd)) + ")"
	} else {
		message += " (" + common.HoldMsgNoResources + ")"
	}
	noResourcesLog.Warn(job.ID, "cannot create reservation",
		zap.String("jobID", job.ID),
		zap.String("partition", name),
		zap.String("message", message),
		zap.Error(cause))

	conf := ctx.conf()
	switch {
	case perPartition:
		// the job may still fit another partition
	case rsvType == objects.RsvTypeDeadline:
		// deadline failures are handled by the caller
	case ctx.softPolicyCycle && ctx.hardPolicyRsv:
		// no deferral during soft policy scheduling
	case conf.AllowInfiniteWalltimeJobs && job.WallClock <= 0:
		// the system may be full of jobs that never end
	case conf.Mode == configs.ModeMonitor:
	case !conf.NoJobHoldNoResources:
		ctx.calendar.Hold(job, objects.HoldDefer, holdReasonNoResources, message)
	}
	ctx.keep(job, stashed, nil)
	metrics.GetPlacementMetrics().IncReservation(metrics.RsvFailed)
	return fmt.Errorf("%s: %w", message, cause)
}

// commit applies the winning shape, distributes the tasks and registers the reservation.
func (ctx *Context) commit(job *objects.Job, best *placement, rsvType objects.ReservationType) (*objects.Reservation, error) {
	restoreShape(job, best.shape)
	allocs, err := ctx.calendar.Distribute(job, best.sel)
	if err != nil {
		return nil, err
	}
	var rsv *objects.Reservation
	if job.HasFlag(objects.FlagMasterSync) && len(job.Requirements) > 1 {
		rsv, err = ctx.calendar.CommitSynchronized(job, best.sel.Partition, allocs, best.sel.Start, rsvType)
	} else {
		rsv, err = ctx.calendar.Commit(job, best.sel.Partition, allocs, best.sel.Start, rsvType)
	}
	if err != nil {
		return nil, err
	}
	rsv.Preemptees = preempteesOn(best.sel.Preemptees, rsv)
	return rsv, nil
}

// preempteesOn returns the IDs of the jobs running on the nodes bound by the reservation.
func preempteesOn(jobs []*objects.Job, rsv *objects.Reservation) []string {
	if len(jobs) == 0 {
		return nil
	}
	nodes := rsv.Nodes()
	for _, linked := range rsv.Linked {
		for _, nt := range linked.Nodes() {
			nodes.Add(nt.Node, nt.TaskCount)
		}
	}
	var ids []string
	for _, j := range jobs {
		for _, nt := range nodes {
			if nt.Node.GetJobTasks(j.ID) > 0 {
				ids = append(ids, j.ID)
				break
			}
		}
	}
	return ids
}

// keepEarlier decides between a previous and a new reservation of a job: the one starting first is kept,
// the new one on a tie. Either may be nil.
func keepEarlier(previous, fresh *objects.Reservation) (kept, discarded *objects.Reservation) {
	switch {
	case previous == nil:
		return fresh, nil
	case fresh == nil:
		return previous, nil
	case fresh.Start.After(previous.Start):
		return previous, fresh
	default:
		return fresh, previous
	}
}

// keep attaches the earlier reservation to the job and releases the other one.
func (ctx *Context) keep(job *objects.Job, previous, fresh *objects.Reservation) *objects.Reservation {
	kept, discarded := keepEarlier(previous, fresh)
	if discarded != nil {
		log.Log(log.Reserve).Debug("reservation discarded",
			zap.String("jobID", job.ID),
			zap.String("reservationID", discarded.ID),
			zap.String("partition", discarded.Partition),
			zap.Time("start", discarded.Start))
		ctx.ReleaseReservation(discarded)
	}
	job.Rsv = kept
	return kept
}

// notifyDelay reports a completion later than the previous reservation promised and a start beyond the
// QOS queue time trigger threshold.
func (ctx *Context) notifyDelay(job *objects.Job, rsv *objects.Reservation, previousEnd time.Time) {
	now := ctx.cluster.Now
	if !previousEnd.IsZero() && rsv.End.After(previousEnd) {
		msg := fmt.Sprintf(common.MsgReservationDelayed, job.ID, common.Relative(now, previousEnd), common.Relative(now, rsv.End))
		log.Log(log.Reserve).Warn(msg,
			zap.String("reservationID", rsv.ID))
		ctx.sink.Publish(events.CreateJobEventRecord(job.ID, msg, events.ChangeSet, metrics.RsvDelayed))
		metrics.GetPlacementMetrics().IncReservation(metrics.RsvDelayed)
	}
	if q := job.Credential.QOS; q != nil && q.QueueTimeTriggerThreshold > 0 &&
		rsv.Start.Sub(job.SystemQueueTime) > q.QueueTimeTriggerThreshold {
		log.Log(log.Reserve).Warn("reservation start exceeds QOS queue time trigger threshold",
			zap.String("jobID", job.ID),
			zap.String("qos", q.Name),
			zap.Time("start", rsv.Start))
		ctx.sink.Publish(events.CreateJobEventRecord(job.ID, "reservation start exceeds QOS queue time trigger threshold", events.ChangeFail, q.Name))
	}
}
