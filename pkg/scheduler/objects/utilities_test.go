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
	"time"

	"github.com/apache/yunikorn-placement/pkg/common/resources"
)

const (
	nodeID1    = "node-1"
	nodeID2    = "node-2"
	jobID1     = "job-1"
	jobID2     = "job-2"
	testUser   = "testuser"
	partition1 = "default"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newProcNode(id string, procs int) *Node {
	return NewNode(id, partition1, resources.NewProcMem(resources.Quantity(procs), resources.Quantity(procs*1024)))
}

func newProcNodes(count, procs int) []*Node {
	nodes := make([]*Node, count)
	for i := range nodes {
		nodes[i] = newProcNode("node-"+strconv.Itoa(i+1), procs)
	}
	return nodes
}

func newProcJob(id string, tasks int, wallclock time.Duration) *Job {
	job := NewJob(id, testUser, NewRequirement(tasks, resources.NewProcMem(1, 0)))
	job.WallClock = wallclock
	return job
}
