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

	"github.com/google/btree"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/apache/yunikorn-placement/pkg/log"
)

// NodeCollection holds the nodes of one partition. The usable nodes are kept in the order
// of the node allocation policy of the partition.
type NodeCollection interface {
	AddNode(node *Node) error
	RemoveNode(nodeID string) *Node
	GetNode(nodeID string) *Node
	GetNodeCount() int
	GetNodes() []*Node
	GetSchedulableNodes() []*Node
	SetNodeSortingPolicy(policy NodeSortingPolicy)
	GetNodeSortingPolicy() NodeSortingPolicy
}

type rankedNode struct {
	node  *Node
	score float64
}

// lower score first, equal scores keep the order in which the nodes were added
func rankLess(a, b *rankedNode) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.node.index < b.node.index
}

// partitionNodes is only accessed from the scheduling loop and has no locking.
type partitionNodes struct {
	partition string
	policy    NodeSortingPolicy
	byID      map[string]*rankedNode
	usable    *btree.BTreeG[*rankedNode]
	next      int
}

// NewNodeCollection creates an empty collection for the partition. Until a policy is set
// the usable nodes are returned in the order they were added.
func NewNodeCollection(partition string) NodeCollection {
	return &partitionNodes{
		partition: partition,
		byID:      make(map[string]*rankedNode),
		usable:    btree.NewG(7, rankLess),
	}
}

func (pn *partitionNodes) rank(rn *rankedNode) {
	rn.score = 0
	if pn.policy != nil {
		rn.score = pn.policy.ScoreNode(rn.node)
	}
	if rn.node.IsSchedulable() {
		pn.usable.ReplaceOrInsert(rn)
	}
}

func (pn *partitionNodes) AddNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}
	if _, ok := pn.byID[node.ID]; ok {
		return fmt.Errorf("partition %s already has node %s", pn.partition, node.ID)
	}
	node.index = pn.next
	pn.next++
	rn := &rankedNode{node: node}
	pn.byID[node.ID] = rn
	pn.rank(rn)
	node.AddListener(pn)
	return nil
}

func (pn *partitionNodes) RemoveNode(nodeID string) *Node {
	rn, ok := pn.byID[nodeID]
	if !ok {
		log.Log(log.Objects).Debug("node not in partition",
			zap.String("nodeID", nodeID),
			zap.String("partition", pn.partition))
		return nil
	}
	pn.usable.Delete(rn)
	delete(pn.byID, nodeID)
	rn.node.RemoveListener(pn)
	return rn.node
}

func (pn *partitionNodes) GetNode(nodeID string) *Node {
	if rn, ok := pn.byID[nodeID]; ok {
		return rn.node
	}
	return nil
}

func (pn *partitionNodes) GetNodeCount() int {
	return len(pn.byID)
}

// GetNodes returns all nodes in the order they were added.
func (pn *partitionNodes) GetNodes() []*Node {
	nodes := make([]*Node, 0, len(pn.byID))
	for _, rn := range pn.byID {
		nodes = append(nodes, rn.node)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		return a.index - b.index
	})
	return nodes
}

// GetSchedulableNodes returns the usable nodes in allocation policy order.
func (pn *partitionNodes) GetSchedulableNodes() []*Node {
	nodes := make([]*Node, 0, pn.usable.Len())
	pn.usable.Ascend(func(rn *rankedNode) bool {
		nodes = append(nodes, rn.node)
		return true
	})
	return nodes
}

func (pn *partitionNodes) SetNodeSortingPolicy(policy NodeSortingPolicy) {
	pn.policy = policy
	pn.usable.Clear(false)
	for _, rn := range pn.byID {
		pn.rank(rn)
	}
}

func (pn *partitionNodes) GetNodeSortingPolicy() NodeSortingPolicy {
	return pn.policy
}

// NodeUpdated re-ranks the node after a change in state or occupancy.
func (pn *partitionNodes) NodeUpdated(node *Node) {
	rn, ok := pn.byID[node.ID]
	if !ok {
		return
	}
	pn.usable.Delete(rn)
	pn.rank(rn)
}
