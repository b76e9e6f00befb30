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
	"github.com/apache/yunikorn-placement/pkg/scheduler/calendar"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
	"github.com/apache/yunikorn-placement/pkg/scheduler/preemption"
	"github.com/apache/yunikorn-placement/pkg/trace"
)

// EarliestStart finds the earliest time the job, at its current shape, can start and the nodes it can use
// at that time. The search starts at the latest of now, the job minimum start time and earliest. A priority
// reservation follows a failed attempt to start now and is not placed before the retry interval passed.
// A preemptor that can only start later tries to start now by preempting lower priority work. Any other
// job tries the same with the work of others inside its active owner preempt reservations. The selection
// then lists the jobs to preempt.
func (ctx *Context) EarliestStart(job *objects.Job, partition string, earliest time.Time, rsvType objects.ReservationType) (*calendar.Selection, error) {
	if job == nil || len(job.Requirements) == 0 {
		return nil, common.ErrMalformedInput
	}
	defer metrics.GetPlacementMetrics().ObserveSearchLatency(time.Now())
	state := trace.FailedState
	//nolint:errcheck
	trace.StartSpanWrapper(ctx.trace, trace.ShapeLevel, trace.SearchPhase, job.ID)
	//nolint:errcheck
	defer func() { trace.FinishActiveSpanWrapper(ctx.trace, state, "") }()

	now := ctx.cluster.Now
	base := common.MaxT(common.MaxT(now, job.MinStartTime), earliest)
	start := ctx.startFloor(base, rsvType)
	if !ctx.conf().HighThroughput {
		start = ctx.softLimitStart(job, partition, start)
	}

	var sel *calendar.Selection
	var err error
	if len(job.Requirements) == 1 {
		sel, _, err = ctx.calendar.SelectNodes(&calendar.SelectRequest{
			Job:       job,
			Partition: partition,
			Start:     start,
			Search:    true,
		})
	} else {
		sel, err = ctx.probeRanges(job, partition, start)
	}

	if (sel == nil || sel.Start.After(now)) && !base.After(now) {
		var psel *calendar.Selection
		switch {
		case job.HasFlag(objects.FlagPreemptor):
			psel = ctx.preemptiveSelection(job, partition, false)
		case ctx.finder.OwnsPreemptReservation(job, partition):
			psel = ctx.preemptiveSelection(job, partition, true)
		}
		if psel != nil {
			sel, err = psel, nil
		}
	}
	if err != nil {
		log.Log(log.Reserve).Debug("no start time found",
			zap.String("jobID", job.ID),
			zap.String("partition", partition),
			zap.Time("from", start),
			zap.Error(err))
		return nil, err
	}
	state = trace.ReservedState
	return sel, nil
}

// startFloor applies the retry interval to priority reservations, monitor and test mode use the
// resource manager poll interval.
func (ctx *Context) startFloor(base time.Time, rsvType objects.ReservationType) time.Time {
	if rsvType != objects.RsvTypePriority {
		return base
	}
	retry := ctx.conf().ReservationRetryInterval
	if mode := ctx.conf().Mode; mode == configs.ModeMonitor || mode == configs.ModeTest {
		retry = ctx.conf().RMPollInterval
	}
	return common.MaxT(base, common.AddDuration(ctx.cluster.Now, retry))
}

// probeRanges evaluates a multi requirement job at start and moves forward to the next change hint
// on failure, until the job fits, the probe limit is reached or the horizon is passed.
func (ctx *Context) probeRanges(job *objects.Job, partition string, start time.Time) (*calendar.Selection, error) {
	horizon := common.AddDuration(ctx.cluster.Now, ctx.conf().Horizon)
	probes := ctx.conf().MaxRangeProbes
	if probes <= 0 {
		probes = 1
	}
	err := common.ErrInfeasibleEver
	for i := 0; i < probes && !start.After(horizon); i++ {
		sel, next, serr := ctx.calendar.SelectNodes(&calendar.SelectRequest{
			Job:       job,
			Partition: partition,
			Start:     start,
		})
		if serr == nil {
			return sel, nil
		}
		err = serr
		if !errors.Is(serr, common.ErrInfeasibleNow) || !next.After(start) {
			break
		}
		start = next
	}
	return nil, err
}

// preemptiveSelection looks for preemptible work that lets the job start now. In conditional mode only the
// jobs of others inside the owner preempt reservations of the job are considered.
func (ctx *Context) preemptiveSelection(job *objects.Job, partition string, conditional bool) *calendar.Selection {
	state := trace.FailedState
	//nolint:errcheck
	trace.StartSpanWrapper(ctx.trace, trace.PartitionLevel, trace.PreemptPhase, job.ID)
	//nolint:errcheck
	defer func() { trace.FinishActiveSpanWrapper(ctx.trace, state, "") }()

	for _, p := range ctx.searchPartitions(job, partition) {
		request := &preemption.Request{
			Preemptor: job,
			Priority:  job.Priority(p.Name),
			Partition: p.Name,
		}
		if conditional {
			request.Conditional = true
		} else {
			request.Candidates = ctx.preemptionCandidates(job, p)
		}
		res, err := ctx.FindPreemptible(request)
		if err != nil || res.IsEmpty() {
			continue
		}
		sel, _, err := ctx.calendar.SelectNodes(&calendar.SelectRequest{
			Job:        job,
			Partition:  p.Name,
			Start:      ctx.cluster.Now,
			Preemptees: res.Jobs,
		})
		if err != nil {
			log.Log(log.Preempt).Debug("preemption does not let the job start now",
				zap.String("jobID", job.ID),
				zap.String("partition", p.Name),
				zap.Strings("candidates", res.JobIDs()))
			continue
		}
		state = trace.ReservedState
		return sel
	}
	return nil
}

// FindPreemptible returns the preemptible nodes and jobs for the request.
func (ctx *Context) FindPreemptible(r *preemption.Request) (*preemption.Result, error) {
	res, err := ctx.finder.Find(r)
	if err == nil && res.IsEmpty() {
		log.Log(log.Preempt).Debug(common.MsgNoPreemptibleForJob,
			zap.String("jobID", r.Preemptor.ID),
			zap.String("partition", r.Partition))
	}
	return res, err
}

// preemptionCandidates lists the nodes the job could ever use in the partition, nil when there are none.
func (ctx *Context) preemptionCandidates(job *objects.Job, p *objects.Partition) objects.NodeList {
	var hosts []string
	if job.HasFlag(objects.FlagHostList) && len(job.HostList) > 0 {
		hosts = job.HostList
	} else {
		for _, node := range ctx.cluster.CandidateNodes(p.Name) {
			hosts = append(hosts, node.ID)
		}
	}
	nl := ctx.calendar.FeasibleNodes(job, job.Requirements[0], p.Name, hosts)
	if nl.IsEmpty() {
		return nil
	}
	return nl
}

// searchPartitions returns the named partition or every partition the job can access.
// The shared partition is only searched when it is the only partition.
func (ctx *Context) searchPartitions(job *objects.Job, partition string) []*objects.Partition {
	if partition != "" {
		if p := ctx.cluster.GetPartition(partition); p != nil {
			return []*objects.Partition{p}
		}
		return nil
	}
	all := ctx.cluster.GetPartitions()
	var list []*objects.Partition
	for _, p := range all {
		if len(all) > 1 && ctx.cluster.IsSharedPartition(p.Name) {
			continue
		}
		if job.CanAccessPartition(p.Name) {
			list = append(list, p)
		}
	}
	return list
}
