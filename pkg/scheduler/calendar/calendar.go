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
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/events"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/scheduler/nodeset"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

// Calendar answers when and where a job fits, based on the active jobs and the reservations
// registered on the nodes. It also distributes tasks, commits and releases reservations and
// places holds on jobs. All state lives in the cluster tables.
type Calendar struct {
	cluster  *objects.Cluster
	selector *nodeset.Selector
	sink     events.Sink
}

func New(cluster *objects.Cluster, selector *nodeset.Selector, sink events.Sink) *Calendar {
	if selector == nil {
		selector = nodeset.NewSelector(cluster.Config.MaxNodeSets)
	}
	if sink == nil {
		sink = events.NopSink
	}
	return &Calendar{
		cluster:  cluster,
		selector: selector,
		sink:     sink,
	}
}

// SelectRequest is the input of a node selection.
type SelectRequest struct {
	Job *objects.Job
	// partition to place the job in, empty searches all partitions the job can access
	Partition string
	// earliest start, never earlier than now
	Start time.Time
	// search forward in time until the horizon, otherwise only Start is evaluated
	Search bool
	// restricts the candidate nodes, nil allows all nodes
	HostList objects.NodeList
	// jobs that are considered gone when computing free resources
	Preemptees []*objects.Job
	// reservations do not block the job
	IgnoreReservations bool
}

// Selection is the result of a successful node selection: per requirement the candidate nodes with
// the tasks available in the whole window [Start, Start+wallclock).
type Selection struct {
	Partition  string
	Start      time.Time
	Candidates []objects.NodeList
	// selected node set per requirement, empty when no set was selected
	NodeSets   []string
	Preemptees []*objects.Job
}

// TaskCount returns the available tasks summed over all requirements.
func (s *Selection) TaskCount() int {
	tc := 0
	for _, nl := range s.Candidates {
		tc += nl.TaskCount()
	}
	return tc
}

// SelectNodes finds the nodes for the job at the requested start. In search mode the earliest feasible
// time up to the horizon is returned. Otherwise a failure returns the next time the availability on the
// candidate nodes changes as a hint for the caller.
// Errors: ErrMalformedInput, ErrInfeasibleNow (a later time may work) and ErrInfeasibleEver.
func (c *Calendar) SelectNodes(r *SelectRequest) (*Selection, time.Time, error) {
	if r == nil || r.Job == nil || len(r.Job.Requirements) == 0 {
		return nil, common.MaxTime, common.ErrMalformedInput
	}
	partitions := c.targetPartitions(r)
	if len(partitions) == 0 {
		return nil, common.MaxTime, common.ErrMalformedInput
	}
	start := common.MaxT(r.Start, c.cluster.Now)
	horizon := common.AddDuration(c.cluster.Now, c.cluster.Config.Horizon)
	if start.After(horizon) {
		return nil, common.MaxTime, common.ErrInfeasibleEver
	}

	var best *Selection
	next := common.MaxTime
	for _, p := range partitions {
		sel, pNext := c.selectInPartition(r, p, start, horizon)
		if sel != nil {
			if best == nil || sel.Start.Before(best.Start) {
				best = sel
			}
			if !sel.Start.After(start) {
				break
			}
			continue
		}
		next = common.MinT(next, pNext)
	}
	if best != nil {
		log.Log(log.Calendar).Debug("nodes selected",
			zap.String("jobID", r.Job.ID),
			zap.String("partition", best.Partition),
			zap.Time("start", best.Start),
			zap.Int("availableTasks", best.TaskCount()))
		return best, best.Start, nil
	}
	if next.After(horizon) {
		return nil, common.MaxTime, common.ErrInfeasibleEver
	}
	return nil, next, common.ErrInfeasibleNow
}

// targetPartitions returns the partitions to evaluate. The shared partition is only a target when
// it is named or is the only partition, its nodes are candidates for every partition.
func (c *Calendar) targetPartitions(r *SelectRequest) []*objects.Partition {
	if r.Partition != "" {
		if p := c.cluster.GetPartition(r.Partition); p != nil {
			return []*objects.Partition{p}
		}
		return nil
	}
	all := c.cluster.GetPartitions()
	var list []*objects.Partition
	for _, p := range all {
		if len(all) > 1 && c.cluster.IsSharedPartition(p.Name) {
			continue
		}
		if r.Job.CanAccessPartition(p.Name) {
			list = append(list, p)
		}
	}
	return list
}

// selectInPartition evaluates the start and, in search mode, every later time at which resources are
// freed on the candidate nodes. The returned time is the next change after the last evaluated time.
func (c *Calendar) selectInPartition(r *SelectRequest, p *objects.Partition, start, horizon time.Time) (*Selection, time.Time) {
	nodes := c.candidateNodes(r, p)
	if len(nodes) == 0 {
		return nil, common.MaxTime
	}
	changes := c.changeTimes(r, nodes, start)
	if sel := c.feasibleAt(r, p, nodes, start); sel != nil {
		return sel, start
	}
	if !r.Search {
		if len(changes) == 0 {
			return nil, common.MaxTime
		}
		return nil, changes[0]
	}
	for _, t := range changes {
		if t.After(horizon) {
			break
		}
		if sel := c.feasibleAt(r, p, nodes, t); sel != nil {
			return sel, t
		}
	}
	return nil, common.MaxTime
}

// changeTimes returns the sorted times after start at which active jobs or blocking reservations end.
func (c *Calendar) changeTimes(r *SelectRequest, nodes []*objects.Node, start time.Time) []time.Time {
	seen := make(map[time.Time]bool)
	var times []time.Time
	add := func(t time.Time) {
		if t.After(start) && !t.Equal(common.MaxTime) && !seen[t] {
			seen[t] = true
			times = append(times, t)
		}
	}
	for _, node := range nodes {
		for _, nj := range node.GetJobs() {
			if nj.Job != r.Job && !slices.Contains(r.Preemptees, nj.Job) {
				add(nj.Job.EndTime())
			}
		}
		for _, rsv := range node.GetReservations() {
			if c.blocks(r.Job, rsv, r.IgnoreReservations) {
				add(rsv.End)
			}
		}
	}
	sort.Slice(times, func(i, k int) bool {
		return times[i].Before(times[k])
	})
	return times
}

// feasibleAt builds the candidate lists for every requirement at t. Requirements are evaluated in order,
// the resources of a tentative distribution of earlier requirements are not available to later ones.
func (c *Calendar) feasibleAt(r *SelectRequest, p *objects.Partition, nodes []*objects.Node, t time.Time) *Selection {
	job := r.Job
	end := windowEnd(job, t)
	consumed := make(map[string]*resources.Resource)
	sel := &Selection{
		Partition:  p.Name,
		Start:      t,
		Candidates: make([]objects.NodeList, len(job.Requirements)),
		NodeSets:   make([]string, len(job.Requirements)),
		Preemptees: r.Preemptees,
	}
	for i, req := range job.Requirements {
		var nl objects.NodeList
		for _, node := range nodes {
			if !eligibleFor(req, node) {
				continue
			}
			tasks := c.windowTasks(job, req, node, t, end, r.Preemptees, r.IgnoreReservations, consumed[node.ID])
			if tasks <= 0 {
				continue
			}
			nl = append(nl, objects.NodeTask{Node: node, TaskCount: tasks, Affinity: c.affinity(job, node, t, end)})
		}
		if !adequate(req, nl) {
			return nil
		}
		if p.HasNodeSets() || req.NodeSet != nil {
			name, err := c.selector.Select(c.NodeSetRequest(job, req, p, t), &nl)
			if err != nil || !adequate(req, nl) {
				log.Log(log.Calendar).Debug("no node set can satisfy requirement",
					zap.String("jobID", job.ID),
					zap.Int("reqIndex", i),
					zap.Time("start", t),
					zap.Error(err))
				return nil
			}
			sel.NodeSets[i] = name
		}
		alloc := distributeList(req, c.AllocationPolicy(req, p), nl)
		if alloc.TaskCount() < req.TaskCount {
			return nil
		}
		for _, nt := range alloc {
			if consumed[nt.Node.ID] == nil {
				consumed[nt.Node.ID] = resources.NewResource()
			}
			consumed[nt.Node.ID].AddTo(resources.Multiply(req.PerTask, nt.TaskCount))
		}
		sel.Candidates[i] = nl
	}
	return sel
}

// NodeSetRequest builds the node set selection for the requirement from the partition node set policy.
// The nested hierarchy is walked from the top when the partition defines one.
func (c *Calendar) NodeSetRequest(job *objects.Job, req *objects.Requirement, p *objects.Partition, t time.Time) *nodeset.Request {
	depth := -1
	if len(p.NodeSet.Nested) > 0 {
		depth = 0
	}
	return &nodeset.Request{
		Job:          job,
		Req:          req,
		Start:        t,
		Now:          c.cluster.Now,
		Config:       p.NodeSet,
		SharedMemory: p.SharedMemory,
		Depth:        depth,
	}
}

func adequate(req *objects.Requirement, nl objects.NodeList) bool {
	if nl.TaskCount() < req.TaskCount {
		return false
	}
	return req.NodeCount <= 0 || nl.NodeCount() >= req.NodeCount
}

// windowEnd returns the end of the job when started at t, a job without wallclock never ends.
func windowEnd(job *objects.Job, t time.Time) time.Time {
	if job.WallClock <= 0 {
		return common.MaxTime
	}
	return common.AddDuration(t, job.WallClock)
}
