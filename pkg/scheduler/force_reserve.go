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

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/metrics"
	"github.com/apache/yunikorn-placement/pkg/scheduler/nodeset"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
	"github.com/apache/yunikorn-placement/pkg/trace"
)

// ForceReserve reserves the host list of the job starting now, ignoring current usage and other
// reservations. The job keeps the forced reservation, a previous reservation is released.
// Only single requirement jobs with a host list can be forced.
func (ctx *Context) ForceReserve(job *objects.Job, partition string) error {
	rsv, err := ctx.forceReserve(job, partition)
	if err != nil {
		return err
	}
	if job.Rsv != nil && job.Rsv != rsv {
		ctx.ReleaseReservation(job.Rsv)
	}
	job.Rsv = rsv
	job.CompletionTime = rsv.End
	return nil
}

func (ctx *Context) forceReserve(job *objects.Job, partition string) (*objects.Reservation, error) {
	if job == nil || len(job.Requirements) == 0 {
		return nil, common.ErrMalformedInput
	}
	if len(job.Requirements) > 1 {
		return nil, common.ErrMultiReqForce
	}
	if len(job.HostList) == 0 {
		return nil, common.ErrNoHostList
	}
	state, info := trace.FailedState, ""
	//nolint:errcheck
	trace.StartSpanWrapper(ctx.trace, trace.JobLevel, trace.ForceReservePhase, job.ID)
	//nolint:errcheck
	defer func() { trace.FinishActiveSpanWrapper(ctx.trace, state, info) }()

	req := job.Requirements[0]
	nl := ctx.calendar.FeasibleNodes(job, req, partition, job.HostList)
	if nl.IsEmpty() {
		info = "no usable node in host list"
		return nil, fmt.Errorf("%w: host list %v", common.ErrInfeasibleEver, job.HostList)
	}
	target := partition
	if target == "" {
		for _, nt := range nl {
			if !nt.Node.IsGlobal {
				target = nt.Node.Partition
				break
			}
		}
	}
	p := ctx.cluster.GetPartition(target)
	if p == nil {
		info = "no partition for host list"
		return nil, common.ErrMalformedInput
	}
	if p.HasNodeSets() || req.NodeSet != nil {
		if _, err := ctx.SelectResourceSet(ctx.calendar.NodeSetRequest(job, req, p, ctx.cluster.Now), &nl); err != nil {
			info = err.Error()
			return nil, err
		}
	}
	alloc, err := ctx.calendar.DistributeList(req, ctx.calendar.AllocationPolicy(req, p), nl)
	if err != nil {
		info = err.Error()
		return nil, err
	}
	allocs := []*objects.ReqAlloc{{ReqIndex: 0, PerTask: req.PerTask, Nodes: alloc}}
	rsv, err := ctx.calendar.Commit(job, p.Name, allocs, ctx.cluster.Now, objects.RsvTypeQOSReserved)
	if err != nil {
		info = err.Error()
		return nil, err
	}
	metrics.GetPlacementMetrics().IncReservation(metrics.RsvForced)
	log.Log(log.Reserve).Info("forced reservation created",
		zap.String("jobID", job.ID),
		zap.String("reservationID", rsv.ID),
		zap.String("partition", p.Name),
		zap.Stringer("nodes", alloc))
	state = trace.ReservedState
	return rsv, nil
}

// SelectResourceSet restricts the nodes to the best node set for the request and returns the set name.
func (ctx *Context) SelectResourceSet(r *nodeset.Request, nodes *objects.NodeList) (string, error) {
	state, info := trace.FailedState, ""
	//nolint:errcheck
	trace.StartSpanWrapper(ctx.trace, trace.NodesLevel, trace.SelectNodeSetPhase, r.Job.ID)
	//nolint:errcheck
	defer func() { trace.FinishActiveSpanWrapper(ctx.trace, state, info) }()

	name, err := ctx.selector.Select(r, nodes)
	if err != nil {
		info = err.Error()
		return "", err
	}
	state = trace.ReservedState
	return name, nil
}
