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
	"strconv"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/events"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

const partition1 = "default"

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const baseConfig = `
partitions:
  - name: default
`

func newTestCluster(t *testing.T, conf string, nodes, procs int) *objects.Cluster {
	t.Helper()
	pc, err := configs.LoadPlacementConfigFromByteArray([]byte(conf))
	assert.NilError(t, err, "config load failed")
	c, err := objects.NewCluster(pc, testNow)
	assert.NilError(t, err, "cluster create failed")
	for i := 1; i <= nodes; i++ {
		addNode(t, c, "node-"+strconv.Itoa(i), partition1, procs)
	}
	return c
}

func addNode(t *testing.T, c *objects.Cluster, id, partition string, procs int) *objects.Node {
	t.Helper()
	node := objects.NewNode(id, partition, resources.NewProcMem(resources.Quantity(procs), resources.Quantity(procs*1024)))
	assert.NilError(t, c.AddNode(node), "node add failed")
	return node
}

func newTestCalendar(c *objects.Cluster) (*Calendar, *events.EventStore) {
	store := events.NewEventStore(100)
	return New(c, nil, store), store
}

func newJob(id string, tasks int, wallclock time.Duration) *objects.Job {
	job := objects.NewJob(id, "testuser", objects.NewRequirement(tasks, resources.NewProcMem(1, 0)))
	job.WallClock = wallclock
	return job
}

// runJob starts a one proc per task job now with the tasks on each of the nodes.
func runJob(t *testing.T, c *objects.Cluster, id string, wallclock time.Duration, tasks int, nodeIDs ...string) *objects.Job {
	t.Helper()
	job := newJob(id, tasks*len(nodeIDs), wallclock)
	assert.NilError(t, c.AddJob(job), "job add failed")
	var nl objects.NodeList
	for _, nodeID := range nodeIDs {
		nl.Add(c.GetNode(nodeID), tasks)
	}
	assert.NilError(t, c.StartJob(job, []objects.NodeList{nl}, c.Now), "job start failed")
	return job
}

func nodeList(c *objects.Cluster, tasks int, ids ...string) objects.NodeList {
	var nl objects.NodeList
	for _, id := range ids {
		nl.Add(c.GetNode(id), tasks)
	}
	return nl
}
