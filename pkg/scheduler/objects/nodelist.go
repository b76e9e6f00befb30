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
	"strconv"
	"strings"
)

// Affinity of a node for a job, derived from the reservations on the node.
type Affinity int

const (
	AffinityNone Affinity = iota
	AffinityPositive
	AffinityNegative
	AffinityRequired
	AffinityPreemptible
)

func (a Affinity) String() string {
	return [...]string{"None", "Positive", "Negative", "Required", "Preemptible"}[a]
}

// NodeTask is one entry of a node list: the node and the task count available or bound on it.
type NodeTask struct {
	Node      *Node
	TaskCount int
	Affinity  Affinity
}

// NodeList is an ordered list of nodes with task counts.
// Depending on the context the counts are available tasks (candidates) or bound tasks (allocations).
type NodeList []NodeTask

// TaskCount returns the sum of the tasks over all entries.
func (nl NodeList) TaskCount() int {
	tc := 0
	for _, nt := range nl {
		tc += nt.TaskCount
	}
	return tc
}

func (nl NodeList) NodeCount() int {
	return len(nl)
}

func (nl NodeList) IsEmpty() bool {
	return len(nl) == 0
}

// Clone returns a copy of the list, the nodes are shared.
func (nl NodeList) Clone() NodeList {
	if nl == nil {
		return nil
	}
	out := make(NodeList, len(nl))
	copy(out, nl)
	return out
}

func (nl NodeList) Index(nodeID string) int {
	for i, nt := range nl {
		if nt.Node.ID == nodeID {
			return i
		}
	}
	return -1
}

func (nl NodeList) Contains(nodeID string) bool {
	return nl.Index(nodeID) != -1
}

// Get returns the tasks for the node, 0 if the node is not in the list.
func (nl NodeList) Get(nodeID string) int {
	if i := nl.Index(nodeID); i != -1 {
		return nl[i].TaskCount
	}
	return 0
}

// Retain keeps the entries for which keep returns true, preserving the order.
func (nl *NodeList) Retain(keep func(NodeTask) bool) {
	kept := (*nl)[:0]
	for _, nt := range *nl {
		if keep(nt) {
			kept = append(kept, nt)
		}
	}
	// drop references to removed nodes
	for i := len(kept); i < len(*nl); i++ {
		(*nl)[i] = NodeTask{}
	}
	*nl = kept
}

// Clear empties the list in place.
func (nl *NodeList) Clear() {
	*nl = (*nl)[:0]
}

// Replace overwrites the content of the list with a copy of other.
func (nl *NodeList) Replace(other NodeList) {
	*nl = append((*nl)[:0], other...)
}

// Add adds tasks for the node, merging with an existing entry.
func (nl *NodeList) Add(node *Node, tasks int) {
	if i := nl.Index(node.ID); i != -1 {
		(*nl)[i].TaskCount += tasks
		return
	}
	*nl = append(*nl, NodeTask{Node: node, TaskCount: tasks})
}

func (nl NodeList) IDs() []string {
	ids := make([]string, len(nl))
	for i, nt := range nl {
		ids[i] = nt.Node.ID
	}
	return ids
}

func (nl NodeList) String() string {
	parts := make([]string, len(nl))
	for i, nt := range nl {
		parts[i] = nt.Node.ID + ":" + strconv.Itoa(nt.TaskCount)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
