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
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/log"
)

// Cluster holds the in-memory tables the placement core works on: partitions with their nodes,
// jobs, reservations and QOS definitions. The scheduling loop advances the iteration and clock.
// The tables are owned by the single scheduling goroutine and are not safe for concurrent use.
type Cluster struct {
	Config configs.SchedulerSection
	// current scheduling iteration, advanced once per scheduling pass
	Iteration int64
	Now       time.Time

	partitions     map[string]*Partition
	partitionOrder []string
	jobs           map[string]*Job
	reservations   map[string]*Reservation
	qos            map[string]*QOS
	globalNode     *Node
}

// NewCluster builds the tables from a validated placement config.
func NewCluster(conf *configs.PlacementConfig, now time.Time) (*Cluster, error) {
	if conf == nil {
		return nil, fmt.Errorf("placement config cannot be nil")
	}
	c := &Cluster{
		Config:       conf.Scheduler,
		Now:          now,
		partitions:   make(map[string]*Partition),
		jobs:         make(map[string]*Job),
		reservations: make(map[string]*Reservation),
		qos:          make(map[string]*QOS),
	}
	for _, pc := range conf.Partitions {
		if err := c.AddPartition(pc); err != nil {
			return nil, err
		}
	}
	for _, qc := range conf.QOS {
		c.qos[qc.Name] = NewQOS(qc)
	}
	return c, nil
}

func (c *Cluster) AddPartition(conf configs.PartitionConfig) error {
	if c.partitions[conf.Name] != nil {
		return fmt.Errorf("duplicate partition %s", conf.Name)
	}
	p, err := NewPartition(conf, c.Config)
	if err != nil {
		return err
	}
	c.partitions[p.Name] = p
	c.partitionOrder = append(c.partitionOrder, p.Name)
	return nil
}

func (c *Cluster) GetPartition(name string) *Partition {
	return c.partitions[name]
}

// GetPartitions returns the partitions in configuration order.
func (c *Cluster) GetPartitions() []*Partition {
	list := make([]*Partition, 0, len(c.partitionOrder))
	for _, name := range c.partitionOrder {
		list = append(list, c.partitions[name])
	}
	return list
}

// IsSharedPartition returns true for the partition whose nodes are usable from every partition.
func (c *Cluster) IsSharedPartition(name string) bool {
	return name != "" && name == c.Config.SharedPartition
}

func (c *Cluster) GetQOS(name string) *QOS {
	return c.qos[name]
}

func (c *Cluster) AddQOS(qos *QOS) {
	c.qos[qos.Name] = qos
}

// AddNode adds the node to its partition, the configured global node is tracked separately.
func (c *Cluster) AddNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}
	if c.Config.GlobalNode != "" && node.ID == c.Config.GlobalNode {
		node.IsGlobal = true
		c.globalNode = node
		return nil
	}
	p := c.partitions[node.Partition]
	if p == nil {
		return fmt.Errorf("node %s references unknown partition %s", node.ID, node.Partition)
	}
	if err := p.AddNode(node); err != nil {
		return err
	}
	log.Log(log.Objects).Debug("node added",
		zap.String("nodeID", node.ID),
		zap.String("partition", node.Partition),
		zap.Stringer("configured", node.Configured))
	return nil
}

func (c *Cluster) GetGlobalNode() *Node {
	return c.globalNode
}

// GetNode finds the node in any partition.
func (c *Cluster) GetNode(nodeID string) *Node {
	for _, name := range c.partitionOrder {
		if n := c.partitions[name].GetNode(nodeID); n != nil {
			return n
		}
	}
	return nil
}

// CandidateNodes returns the schedulable nodes usable by jobs placed in the partition,
// including the shared partition nodes, in allocation policy order.
func (c *Cluster) CandidateNodes(partition string) []*Node {
	p := c.partitions[partition]
	if p == nil {
		return nil
	}
	nodes := p.GetSchedulableNodes()
	if !c.IsSharedPartition(partition) {
		if sp := c.partitions[c.Config.SharedPartition]; sp != nil {
			nodes = append(nodes, sp.GetSchedulableNodes()...)
		}
	}
	return nodes
}

// NextIteration starts a new scheduling pass at now.
func (c *Cluster) NextIteration(now time.Time) {
	c.Iteration++
	c.Now = now
}

func (c *Cluster) AddJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if c.jobs[job.ID] != nil {
		return fmt.Errorf("duplicate job %s", job.ID)
	}
	c.jobs[job.ID] = job
	return nil
}

func (c *Cluster) GetJob(jobID string) *Job {
	return c.jobs[jobID]
}

// GetJobs returns all jobs ordered by ID.
func (c *Cluster) GetJobs() []*Job {
	list := make([]*Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(i, k int) bool {
		return list[i].ID < list[k].ID
	})
	return list
}

// RemoveJob drops the job from the table and unbinds it from its nodes.
// The reservation of the job must be released by the caller.
func (c *Cluster) RemoveJob(jobID string) *Job {
	job := c.jobs[jobID]
	if job == nil {
		return nil
	}
	c.unbindJob(job)
	job.State = JobRemoved
	delete(c.jobs, jobID)
	return job
}

// StartJob binds the job to the nodes, one node list per requirement, and marks it active at now.
func (c *Cluster) StartJob(job *Job, allocs []NodeList, now time.Time) error {
	if job == nil || len(allocs) != len(job.Requirements) {
		return fmt.Errorf("job start requires one node list per requirement")
	}
	if job.IsActive() {
		return fmt.Errorf("job %s is already active", job.ID)
	}
	for i, nl := range allocs {
		for _, nt := range nl {
			nt.Node.AddJob(job, nt.TaskCount, job.Requirements[i].PerTask)
		}
	}
	job.AllocNodes = allocs
	job.State = JobActive
	job.StartTime = now
	if len(allocs) > 0 && len(allocs[0]) > 0 && job.Partition == "" {
		job.Partition = allocs[0][0].Node.Partition
	}
	log.Log(log.Objects).Debug("job started",
		zap.String("jobID", job.ID),
		zap.String("partition", job.Partition),
		zap.Int("tasks", job.TaskCount()))
	return nil
}

// CompleteJob unbinds the job from its nodes.
func (c *Cluster) CompleteJob(jobID string) {
	job := c.jobs[jobID]
	if job == nil {
		return
	}
	c.unbindJob(job)
	job.State = JobCompleted
}

func (c *Cluster) unbindJob(job *Job) {
	for _, nl := range job.AllocNodes {
		for _, nt := range nl {
			nt.Node.RemoveJob(job.ID)
		}
	}
	job.AllocNodes = nil
}

// ActiveJobs returns the active jobs running on nodes of the partition, ordered by ID.
func (c *Cluster) ActiveJobs(partition string) []*Job {
	var list []*Job
	for _, j := range c.GetJobs() {
		if !j.IsActive() {
			continue
		}
		if partition != "" && j.Partition != partition {
			continue
		}
		list = append(list, j)
	}
	return list
}

// ActiveJobCount returns the number of active jobs in the partition, all partitions for "".
func (c *Cluster) ActiveJobCount(partition string) int {
	count := 0
	for _, j := range c.jobs {
		if j.IsActive() && (partition == "" || j.Partition == partition) {
			count++
		}
	}
	return count
}

// AddReservation registers the reservation and links it to its nodes.
func (c *Cluster) AddReservation(rsv *Reservation) error {
	if rsv == nil {
		return fmt.Errorf("reservation cannot be nil")
	}
	if c.reservations[rsv.ID] != nil {
		return fmt.Errorf("duplicate reservation %s", rsv.ID)
	}
	c.reservations[rsv.ID] = rsv
	for _, nt := range rsv.Nodes() {
		nt.Node.AddReservation(rsv)
	}
	return nil
}

// RemoveReservation unregisters the reservation and unlinks it from its nodes.
func (c *Cluster) RemoveReservation(rsv *Reservation) bool {
	if rsv == nil || c.reservations[rsv.ID] == nil {
		return false
	}
	delete(c.reservations, rsv.ID)
	for _, nt := range rsv.Nodes() {
		nt.Node.RemoveReservation(rsv)
	}
	return true
}

func (c *Cluster) GetReservation(id string) *Reservation {
	return c.reservations[id]
}

// FindReservation looks a reservation up by name.
func (c *Cluster) FindReservation(name string) *Reservation {
	for _, rsv := range c.reservations {
		if rsv.Name == name {
			return rsv
		}
	}
	return nil
}

// GetReservations returns the registered reservations ordered by start time.
func (c *Cluster) GetReservations() []*Reservation {
	list := make([]*Reservation, 0, len(c.reservations))
	for _, r := range c.reservations {
		list = append(list, r)
	}
	sort.Slice(list, func(i, k int) bool {
		if list[i].Start.Equal(list[k].Start) {
			return list[i].ID < list[k].ID
		}
		return list[i].Start.Before(list[k].Start)
	})
	return list
}
