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
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/metrics"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
	"github.com/apache/yunikorn-placement/pkg/trace"
)

var bucketFullLog = log.RateLimitedLog(log.Gate, rateLimitInterval)

// gatePolicy is the reservation policy in effect for a partition.
type gatePolicy struct {
	backfill    string
	reservation string
	threshold   configs.ThresholdConfig
	depth       int
}

func (ctx *Context) gatePolicy(partition string) gatePolicy {
	if p := ctx.cluster.GetPartition(partition); p != nil {
		return gatePolicy{
			backfill:    p.BackfillPolicy,
			reservation: p.ReservationPolicy,
			threshold:   p.ReservationThreshold,
			depth:       p.BucketRsvDepth,
		}
	}
	conf := ctx.conf()
	rsvPolicy := conf.ReservationPolicy
	if rsvPolicy == "" || rsvPolicy == configs.ReservationDefault {
		rsvPolicy = configs.ReservationCurrentHighest
	}
	return gatePolicy{
		backfill:    conf.BackfillPolicy,
		reservation: rsvPolicy,
		threshold:   conf.ReservationThreshold,
	}
}

// PriorityReserve decides whether the job is entitled to a priority reservation and creates it.
// A job crossing a QOS threshold is always entitled and bypasses the buckets. Other jobs need the
// partition reservation trigger and a free slot in their QOS bucket or in the partition.
// The reservation is placed in the partition when lockToPartition is set, in any accessible partition
// otherwise. rejectedDueToBucket is set when the job was turned away by the reservation policy: reservations
// disabled, trigger not reached, no bucket for the QOS or a full bucket. It is not set for holds, QOS or
// backfill rejections, a recently modified reservation or a failed placement.
func (ctx *Context) PriorityReserve(job *objects.Job, partition string, lockToPartition bool, earliest time.Time) (rejectedDueToBucket bool, err error) {
	if job == nil || len(job.Requirements) == 0 {
		return false, common.ErrMalformedInput
	}
	state, info := trace.RejectedState, ""
	//nolint:errcheck
	trace.StartSpanWrapper(ctx.trace, trace.JobLevel, trace.PriorityReservePhase, job.ID)
	//nolint:errcheck
	defer func() { trace.FinishActiveSpanWrapper(ctx.trace, state, info) }()

	policy := ctx.gatePolicy(partition)
	qos := job.Credential.QOS
	switch {
	case job.Holds != 0:
		info = "job on hold"
	case qos != nil && qos.NoReservation:
		info = "QOS does not allow reservations"
	case policy.backfill == configs.BackfillPreempt:
		log.Log(log.Gate).Debug(common.MsgPreemptRsvExists,
			zap.String("jobID", job.ID),
			zap.String("partition", partition))
		info = common.MsgPreemptRsvExists
	}
	if info != "" {
		metrics.GetPlacementMetrics().IncGateResult(metrics.GateRejected)
		return false, common.ErrPolicyRejected
	}

	target := ""
	if lockToPartition {
		target = partition
	}
	if policy.backfill == configs.BackfillNone || policy.reservation == configs.ReservationNever {
		info = "reservations disabled"
		metrics.GetPlacementMetrics().IncGateResult(metrics.GateRejected)
		if ctx.feasibilityProbe(job, target, earliest) {
			info = "reservations disabled, job deferred"
		}
		return true, common.ErrPolicyRejected
	}
	if job.Rsv != nil && !job.Rsv.IsReleased() && ctx.cluster.Now.Sub(job.Rsv.ModifiedAt) < priorityRsvMinAge {
		info = "reservation recently modified"
		metrics.GetPlacementMetrics().IncGateResult(metrics.GateRejected)
		return false, common.ErrPolicyRejected
	}

	now := ctx.cluster.Now
	threshold := qos.QueueTimeThresholdReached(job, now) || qos.XFactorThresholdReached(job, now)
	doReserve := threshold
	if !doReserve {
		switch policy.reservation {
		case configs.ReservationHighest, configs.ReservationCurrentHighest:
			doReserve = triggerReached(job, policy.threshold, now)
		}
	}
	if !doReserve {
		info = "reservation threshold not reached"
		metrics.GetPlacementMetrics().IncGateResult(metrics.GateRejected)
		return true, common.ErrPolicyRejected
	}

	// a QOS threshold bypasses the bucket depth, not the need for a bucket
	index := ctx.buckets.IndexFor(qos)
	if index < 0 {
		info = "no bucket for QOS"
		metrics.GetPlacementMetrics().IncGateResult(metrics.GateRejected)
		return true, common.ErrPolicyRejected
	}
	if !threshold && !ctx.buckets.HasCapacity(index) && (policy.depth <= 0 || ctx.buckets.PartitionCount(partition) >= policy.depth) {
		bucketFullLog.Info(job.ID, common.MsgBucketFull,
			zap.String("jobID", job.ID),
			zap.String("bucket", ctx.buckets.Name(index)),
			zap.Int("depth", ctx.buckets.Depth(index)),
			zap.String("partition", partition))
		info = common.MsgBucketFull
		metrics.GetPlacementMetrics().IncGateResult(metrics.GateBucketFull)
		return true, common.ErrBucketFull
	}

	rsvType := objects.RsvTypePriority
	if threshold {
		rsvType = objects.RsvTypeQOSReserved
	}
	if job.HasFlag(objects.FlagPreempting) {
		info = "job is preempting"
		state = trace.SkipState
		return false, nil
	}
	if err = ctx.Reserve(job, target, earliest, rsvType, false); err != nil {
		info = err.Error()
		state = trace.FailedState
		return false, err
	}
	rsv := job.Rsv
	if rsv == nil {
		state = trace.SkipState
		return false, nil
	}
	rsv.Priority = job.Priority(partition)
	rsv.SetFlag(objects.RsvFlagPreemptible)
	result := metrics.GateThreshold
	if !threshold {
		ctx.buckets.Charge(rsv, index, partition)
		result = metrics.GateGranted
	}
	metrics.GetPlacementMetrics().IncGateResult(result)
	log.Log(log.Gate).Info("priority reservation granted",
		zap.String("jobID", job.ID),
		zap.String("reservationID", rsv.ID),
		zap.Stringer("type", rsv.Type),
		zap.Bool("threshold", threshold),
		zap.String("bucket", ctx.buckets.Name(index)),
		zap.Time("start", rsv.Start))
	state = trace.ReservedState
	return false, nil
}

// triggerReached checks the partition reservation trigger. No trigger entitles every job.
func triggerReached(job *objects.Job, threshold configs.ThresholdConfig, now time.Time) bool {
	switch threshold.Type {
	case "", configs.ThresholdNone:
		return true
	case configs.ThresholdBypass:
		return float64(job.BypassCount) > threshold.Value
	case configs.ThresholdQueueTime:
		return job.QueueTime(now).Seconds() > threshold.Value
	case configs.ThresholdXFactor:
		return job.XFactor(now) > threshold.Value
	default:
		return false
	}
}

// feasibilityProbe checks that the job can run at all when reservations are disabled.
// A job that fits nowhere is deferred. It returns true when the job was deferred.
func (ctx *Context) feasibilityProbe(job *objects.Job, partition string, earliest time.Time) bool {
	if ctx.conf().DisableJobFeasibilityCheck || (job.Rsv != nil && !job.Rsv.IsReleased()) {
		return false
	}
	err := ctx.Reserve(job, partition, earliest, objects.RsvTypeTimeLock, true)
	if job.Rsv != nil {
		ctx.ReleaseReservation(job.Rsv)
	}
	if err == nil || errors.Is(err, common.ErrMalformedInput) {
		return false
	}
	log.Log(log.Gate).Debug("job failed the feasibility check",
		zap.String("jobID", job.ID),
		zap.Error(err))
	if job.Holds&objects.HoldDefer == 0 {
		ctx.calendar.Hold(job, objects.HoldDefer, holdReasonNoResources, common.HoldMsgNoReservation)
	}
	return true
}
