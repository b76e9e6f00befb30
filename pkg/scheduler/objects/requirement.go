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

	"github.com/apache/yunikorn-placement/pkg/common/resources"
)

// NodeSetRequest overrides the partition node set policy for one requirement.
type NodeSetRequest struct {
	Type      string
	Selection string
	List      []string
}

// Requirement is one homogeneous group of tasks of a job.
type Requirement struct {
	Index     int
	TaskCount int
	// minimum number of nodes, 0 means no constraint
	NodeCount int
	PerTask   *resources.Resource
	// node features that must all be present
	Features []string
	// node allocation policy for this requirement, empty uses the partition policy
	NodeAllocationPolicy string
	NodeSet              *NodeSetRequest
}

func NewRequirement(tasks int, perTask *resources.Resource) *Requirement {
	if perTask == nil {
		perTask = resources.NewResource()
	}
	return &Requirement{
		TaskCount: tasks,
		PerTask:   perTask,
	}
}

func (rq *Requirement) String() string {
	return fmt.Sprintf("req %d: %d tasks x %s", rq.Index, rq.TaskCount, rq.PerTask)
}

// Total returns the resources for all tasks of the requirement.
func (rq *Requirement) Total() *resources.Resource {
	return resources.Multiply(rq.PerTask, rq.TaskCount)
}

// IsCompute returns true if the requirement asks for processors.
func (rq *Requirement) IsCompute() bool {
	return rq.PerTask.Procs() > 0
}

// RequiredMemory returns the memory for all tasks of the requirement.
func (rq *Requirement) RequiredMemory() resources.Quantity {
	return rq.PerTask.Memory() * resources.Quantity(rq.TaskCount)
}
