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

package objects

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/log"
)

type NodeState int

const (
	NodeUnknown NodeState = iota
	NodeIdle
	NodeActive
	NodeBusy
	NodeRunning
	NodeDown
	NodeDrained
)

func (s NodeState) String() string {
	return [...]string{"Unknown", "Idle", "Active", "Busy", "Running", "Down", "Drained"}[s]
}

type NodeAccessPolicy int

const (
	AccessShared NodeAccessPolicy = iota
	AccessSingleJob
	AccessSingleTask
)

func (a NodeAccessPolicy) String() string {
	return [...]string{"Shared", "SingleJob", "SingleTask"}[a]
}

// Stricter returns the most restrictive of the two access policies.
func (a NodeAccessPolicy) Stricter(other NodeAccessPolicy) NodeAccessPolicy {
	if other > a {
		return other
	}
	return a
}

// NodeJob is an active job bound to the node with its task count on the node.
type NodeJob struct {
	Job     *Job
	Tasks   int
	PerTask *resources.Resource
}

// NodeListener is notified when the node occupancy or state changes.
type NodeListener interface {
	NodeUpdated(node *Node)
}

type Node struct {
	ID         string
	Partition  string
	Configured *resources.Resource
	Classes    []string
	Features   []string
	Access     NodeAccessPolicy
	// allocation priority, higher is used first by the priority allocation policy
	Priority int64
	// the global node is a member of every feature set
	IsGlobal bool

	state        NodeState
	index        int
	dedicated    *resources.Resource
	jobs         []*NodeJob
	reservations []*Reservation
	listeners    []NodeListener
}

func NewNode(id, partition string, configured *resources.Resource) *Node {
	if configured == nil {
		configured = resources.NewResource()
	}
	return &Node{
		ID:         id,
		Partition:  partition,
		Configured: configured,
		state:      NodeIdle,
		dedicated:  resources.NewResource(),
	}
}

func (sn *Node) String() string {
	if sn == nil {
		return "node is nil"
	}
	return fmt.Sprintf("NodeID %s, Partition %s, State %s, Configured %s, Dedicated %s",
		sn.ID, sn.Partition, sn.state, sn.Configured, sn.dedicated)
}

func (sn *Node) State() NodeState {
	return sn.state
}

// SetState sets an administrative or resource manager reported state.
func (sn *Node) SetState(state NodeState) {
	if sn.state == state {
		return
	}
	log.Log(log.Objects).Debug("node state change",
		zap.String("nodeID", sn.ID),
		zap.Stringer("from", sn.state),
		zap.Stringer("to", state))
	sn.state = state
	sn.notifyListeners()
}

// IsSchedulable returns true if new work can be placed on the node.
func (sn *Node) IsSchedulable() bool {
	switch sn.state {
	case NodeIdle, NodeActive, NodeBusy, NodeRunning:
		return true
	default:
		return false
	}
}

// IsActiveOrBusy returns true when the node runs work.
func (sn *Node) IsActiveOrBusy() bool {
	return sn.state == NodeActive || sn.state == NodeBusy || sn.state == NodeRunning
}

func (sn *Node) HasFeature(feature string) bool {
	for _, f := range sn.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// HasFeatures returns true if the node has all the features.
func (sn *Node) HasFeatures(features []string) bool {
	for _, f := range features {
		if !sn.HasFeature(f) {
			return false
		}
	}
	return true
}

func (sn *Node) HasClass(class string) bool {
	for _, c := range sn.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// GetDedicatedResource returns the resources used by the active jobs on the node.
func (sn *Node) GetDedicatedResource() *resources.Resource {
	return sn.dedicated.Clone()
}

// GetAvailableResource returns the resources not used by active jobs, reservations are not taken into account.
func (sn *Node) GetAvailableResource() *resources.Resource {
	return resources.SubEliminateNegative(sn.Configured, sn.dedicated)
}

// AddJob binds tasks of an active job to the node.
func (sn *Node) AddJob(job *Job, tasks int, perTask *resources.Resource) {
	if job == nil || tasks <= 0 {
		return
	}
	sn.jobs = append(sn.jobs, &NodeJob{Job: job, Tasks: tasks, PerTask: perTask})
	sn.dedicated.AddTo(resources.Multiply(perTask, tasks))
	sn.refreshState()
	sn.notifyListeners()
}

// RemoveJob releases all tasks of the job from the node.
func (sn *Node) RemoveJob(jobID string) bool {
	removed := false
	kept := sn.jobs[:0]
	for _, nj := range sn.jobs {
		if nj.Job.ID == jobID {
			sn.dedicated.SubFrom(resources.Multiply(nj.PerTask, nj.Tasks))
			removed = true
			continue
		}
		kept = append(kept, nj)
	}
	sn.jobs = kept
	if removed {
		sn.refreshState()
		sn.notifyListeners()
	}
	return removed
}

// GetJobs returns the active jobs bound to the node.
func (sn *Node) GetJobs() []*NodeJob {
	return sn.jobs
}

// GetJobTasks returns the tasks of the job on the node, 0 if the job does not run here.
func (sn *Node) GetJobTasks(jobID string) int {
	for _, nj := range sn.jobs {
		if nj.Job.ID == jobID {
			return nj.Tasks
		}
	}
	return 0
}

// AddReservation links a reservation that binds tasks on this node.
func (sn *Node) AddReservation(rsv *Reservation) {
	for _, r := range sn.reservations {
		if r == rsv {
			return
		}
	}
	sn.reservations = append(sn.reservations, rsv)
	sn.notifyListeners()
}

// RemoveReservation unlinks the reservation from the node.
func (sn *Node) RemoveReservation(rsv *Reservation) bool {
	for i, r := range sn.reservations {
		if r == rsv {
			sn.reservations = append(sn.reservations[:i], sn.reservations[i+1:]...)
			sn.notifyListeners()
			return true
		}
	}
	return false
}

// GetReservations returns the reservations binding tasks on this node.
func (sn *Node) GetReservations() []*Reservation {
	return sn.reservations
}

func (sn *Node) IsReserved() bool {
	return len(sn.reservations) > 0
}

// refreshState moves a schedulable node between idle, active and busy based on the dedicated resources.
func (sn *Node) refreshState() {
	if !sn.IsSchedulable() {
		return
	}
	switch {
	case len(sn.jobs) == 0:
		sn.state = NodeIdle
	case sn.Configured.Procs() > 0 && sn.dedicated.Procs() >= sn.Configured.Procs():
		sn.state = NodeBusy
	default:
		sn.state = NodeActive
	}
}

func (sn *Node) AddListener(listener NodeListener) {
	sn.listeners = append(sn.listeners, listener)
}

func (sn *Node) RemoveListener(listener NodeListener) {
	for i, l := range sn.listeners {
		if l == listener {
			sn.listeners = append(sn.listeners[:i], sn.listeners[i+1:]...)
			return
		}
	}
}

func (sn *Node) notifyListeners() {
	for _, l := range sn.listeners {
		l.NodeUpdated(sn)
	}
}
