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
	"time"

	"golang.org/x/exp/slices"

	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

// candidateNodes returns the schedulable nodes of the partition and the shared partition that pass the
// job level checks: host list, class and required reservation. The global node is added last.
func (c *Calendar) candidateNodes(r *SelectRequest, p *objects.Partition) []*objects.Node {
	all := c.cluster.CandidateNodes(p.Name)
	if gn := c.cluster.GetGlobalNode(); gn != nil && gn.IsSchedulable() {
		all = append(all, gn)
	}
	nodes := make([]*objects.Node, 0, len(all))
	for _, node := range all {
		if r.HostList != nil && !r.HostList.Contains(node.ID) {
			continue
		}
		if c.eligibleForJob(r.Job, node) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func (c *Calendar) eligibleForJob(job *objects.Job, node *objects.Node) bool {
	if !node.IsSchedulable() {
		return false
	}
	if job.HasFlag(objects.FlagHostList) && !slices.Contains(job.HostList, node.ID) {
		return false
	}
	if class := job.Credential.Class; class != "" && len(node.Classes) > 0 && !node.HasClass(class) {
		return false
	}
	if job.RequiredReservation != "" && !hasReservationNamed(node, job.RequiredReservation) {
		return false
	}
	return true
}

func eligibleFor(req *objects.Requirement, node *objects.Node) bool {
	return node.HasFeatures(req.Features)
}

// windowTasks returns the tasks of the requirement that fit on the node during the whole window [t, end).
// Usage only drops when jobs end, it only grows when reservations start: the minimum is found at t and
// at the starts of the blocking reservations inside the window.
func (c *Calendar) windowTasks(job *objects.Job, req *objects.Requirement, node *objects.Node, t, end time.Time, preemptees []*objects.Job, ignoreRsv bool, consumed *resources.Resource) int {
	tasks := c.tasksAt(job, req, node, t, preemptees, ignoreRsv, consumed)
	for _, rsv := range node.GetReservations() {
		if tasks <= 0 {
			break
		}
		if !rsv.Start.After(t) || !rsv.Start.Before(end) || !c.blocks(job, rsv, ignoreRsv) {
			continue
		}
		if n := c.tasksAt(job, req, node, rsv.Start, preemptees, ignoreRsv, consumed); n < tasks {
			tasks = n
		}
	}
	return tasks
}

// tasksAt returns the tasks of the requirement that fit on the node at the point in time.
func (c *Calendar) tasksAt(job *objects.Job, req *objects.Requirement, node *objects.Node, at time.Time, preemptees []*objects.Job, ignoreRsv bool, consumed *resources.Resource) int {
	free := node.Configured.Clone()
	occupied := false
	for _, nj := range node.GetJobs() {
		if nj.Job == job || slices.Contains(preemptees, nj.Job) {
			continue
		}
		// a job running past its wallclock still holds its resources now
		if at.After(c.cluster.Now) && !nj.Job.EndTime().After(at) {
			continue
		}
		free.SubFrom(resources.Multiply(nj.PerTask, nj.Tasks))
		occupied = true
	}
	for _, rsv := range node.GetReservations() {
		if !rsv.ActiveAt(at) || !c.blocks(job, rsv, ignoreRsv) {
			continue
		}
		free.SubFrom(rsv.ResourceOn(node.ID))
		occupied = true
	}
	if consumed != nil {
		free.SubFrom(consumed)
	}
	tasks := resources.TasksFit(free, req.PerTask)
	switch node.Access.Stricter(job.NodeAccess) {
	case objects.AccessSingleJob:
		if occupied {
			return 0
		}
	case objects.AccessSingleTask:
		if occupied || !resources.IsZero(consumed) {
			return 0
		}
		if tasks > 1 {
			tasks = 1
		}
	}
	return tasks
}

// blocks returns true if the reservation takes resources away from the job.
// The job's own reservations, reservations of running jobs (the job itself is counted), the required
// reservation and user reservations the job has access to do not block.
func (c *Calendar) blocks(job *objects.Job, rsv *objects.Reservation, ignoreRsv bool) bool {
	if ignoreRsv || rsv.IsReleased() {
		return false
	}
	if rsv == job.Rsv || rsv.JobID == job.ID {
		return false
	}
	if rsv.IsJobReservation() {
		if owner := c.cluster.GetJob(rsv.JobID); owner != nil && owner.IsActive() {
			return false
		}
		return true
	}
	if job.RequiredReservation != "" && rsv.Name == job.RequiredReservation {
		return false
	}
	return !hasAccess(rsv, job.Credential)
}

// affinity derives the node affinity for the job in the window from the reservations on the node.
func (c *Calendar) affinity(job *objects.Job, node *objects.Node, t, end time.Time) objects.Affinity {
	affinity := objects.AffinityNone
	for _, rsv := range node.GetReservations() {
		if rsv.IsReleased() || !rsv.Overlaps(t, end) {
			continue
		}
		switch {
		case job.RequiredReservation != "" && rsv.Name == job.RequiredReservation:
			return objects.AffinityRequired
		case !rsv.IsJobReservation() && hasAccess(rsv, job.Credential):
			affinity = objects.AffinityPositive
		case c.blocks(job, rsv, false) && affinity == objects.AffinityNone:
			affinity = objects.AffinityNegative
		}
	}
	return affinity
}

// ProbeNode returns the tasks of the requirement that fit on the node for the job wallclock starting at
// the given time with the preemptees gone. Reservations on the node are honoured.
func (c *Calendar) ProbeNode(job *objects.Job, req *objects.Requirement, node *objects.Node, preemptees []*objects.Job, at time.Time) (int, bool) {
	if job == nil || req == nil || node == nil || !eligibleFor(req, node) {
		return 0, false
	}
	tasks := c.windowTasks(job, req, node, at, windowEnd(job, at), preemptees, false, nil)
	return tasks, tasks > 0
}

// FeasibleNodes returns the nodes of the host list that could ever run the requirement in the partition,
// with the tasks that fit in the configured resources. Occupancy and reservations are not considered.
func (c *Calendar) FeasibleNodes(job *objects.Job, req *objects.Requirement, partition string, hostList []string) objects.NodeList {
	var nl objects.NodeList
	for _, id := range hostList {
		node := c.cluster.GetNode(id)
		if node == nil {
			if gn := c.cluster.GetGlobalNode(); gn != nil && gn.ID == id {
				node = gn
			} else {
				continue
			}
		}
		if partition != "" && node.Partition != partition && !c.cluster.IsSharedPartition(node.Partition) && !node.IsGlobal {
			continue
		}
		if !node.IsSchedulable() || !eligibleFor(req, node) || nl.Contains(node.ID) {
			continue
		}
		tasks := resources.TasksFit(node.Configured, req.PerTask)
		if node.Access.Stricter(job.NodeAccess) == objects.AccessSingleTask && tasks > 1 {
			tasks = 1
		}
		if tasks > 0 {
			nl = append(nl, objects.NodeTask{Node: node, TaskCount: tasks})
		}
	}
	return nl
}

func hasReservationNamed(node *objects.Node, name string) bool {
	for _, rsv := range node.GetReservations() {
		if rsv.Name == name && !rsv.IsReleased() {
			return true
		}
	}
	return false
}

// hasAccess returns true if the credentials own the non job reservation.
func hasAccess(rsv *objects.Reservation, cred objects.Credential) bool {
	return (rsv.OwnerUser != "" && rsv.OwnerUser == cred.User) ||
		(rsv.OwnerGroup != "" && rsv.OwnerGroup == cred.Group) ||
		(rsv.OwnerAccount != "" && rsv.OwnerAccount == cred.Account)
}
