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

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/log"
)

// Partition is a resolved partition: the policies are the partition values with the
// scheduler section values filled in where the partition did not set them.
type Partition struct {
	Name                 string
	SharedMemory         bool
	BackfillPolicy       string
	ReservationPolicy    string
	ReservationThreshold configs.ThresholdConfig
	BucketRsvDepth       int
	NodeAllocationPolicy string
	NodeSet              configs.NodeSetConfig
	SoftLimits           configs.SoftLimitConfig

	nodes NodeCollection
}

// NewPartition resolves the partition config against the scheduler section.
func NewPartition(conf configs.PartitionConfig, global configs.SchedulerSection) (*Partition, error) {
	if conf.Name == "" {
		return nil, fmt.Errorf("partition name cannot be empty")
	}
	p := &Partition{
		Name:                 conf.Name,
		SharedMemory:         conf.SharedMemory,
		BackfillPolicy:       conf.BackfillPolicy,
		ReservationPolicy:    resolveReservationPolicy(conf.ReservationPolicy, global.ReservationPolicy),
		ReservationThreshold: conf.ReservationThreshold,
		BucketRsvDepth:       conf.BucketRsvDepth,
		NodeAllocationPolicy: conf.NodeAllocationPolicy,
		NodeSet:              global.NodeSet,
		SoftLimits:           conf.SoftLimits,
	}
	if p.BackfillPolicy == "" {
		p.BackfillPolicy = global.BackfillPolicy
	}
	if p.ReservationThreshold.Type == "" {
		p.ReservationThreshold = global.ReservationThreshold
	}
	if p.NodeAllocationPolicy == "" {
		p.NodeAllocationPolicy = global.NodeAllocationPolicy
	}
	if conf.NodeSet != nil {
		p.NodeSet = *conf.NodeSet
	}
	if p.SoftLimits.MaxProcsPerUser == 0 {
		p.SoftLimits = global.SoftLimits
	}
	p.nodes = NewNodeCollection(p.Name)
	p.nodes.SetNodeSortingPolicy(NewNodeSortingPolicy(p.NodeAllocationPolicy))
	log.Log(log.Objects).Debug("partition resolved",
		zap.String("partition", p.Name),
		zap.String("backfillPolicy", p.BackfillPolicy),
		zap.String("reservationPolicy", p.ReservationPolicy),
		zap.String("nodeAllocationPolicy", p.NodeAllocationPolicy),
		zap.String("nodeSetType", p.NodeSet.Type),
		zap.String("nodeSetSelection", p.NodeSet.Selection))
	return p, nil
}

// The global policy "default" behaves as currenthighest, a partition value other than "default" wins.
func resolveReservationPolicy(partition, global string) string {
	if partition != "" && partition != configs.ReservationDefault {
		return partition
	}
	if global == "" || global == configs.ReservationDefault {
		return configs.ReservationCurrentHighest
	}
	return global
}

func (p *Partition) String() string {
	return fmt.Sprintf("partition %s (%d nodes)", p.Name, p.nodes.GetNodeCount())
}

// HasNodeSets returns true if the partition constrains allocations to node sets.
func (p *Partition) HasNodeSets() bool {
	return p.NodeSet.Type != "" && p.NodeSet.Type != configs.SetTypeNone &&
		p.NodeSet.Selection != "" && p.NodeSet.Selection != configs.SelectNone
}

func (p *Partition) AddNode(node *Node) error {
	return p.nodes.AddNode(node)
}

func (p *Partition) RemoveNode(nodeID string) *Node {
	return p.nodes.RemoveNode(nodeID)
}

func (p *Partition) GetNode(nodeID string) *Node {
	return p.nodes.GetNode(nodeID)
}

func (p *Partition) GetNodeCount() int {
	return p.nodes.GetNodeCount()
}

// GetNodes returns all nodes in the order they were added.
func (p *Partition) GetNodes() []*Node {
	return p.nodes.GetNodes()
}

// GetSchedulableNodes returns the schedulable nodes in allocation policy order.
func (p *Partition) GetSchedulableNodes() []*Node {
	return p.nodes.GetSchedulableNodes()
}

func (p *Partition) GetNodeSortingPolicy() NodeSortingPolicy {
	return p.nodes.GetNodeSortingPolicy()
}
