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

package scheduler

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

const (
	partition1 = "default"
	testUser   = "testuser"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const baseConfig = `
partitions:
  - name: default
`

// newTestContext creates a context with the nodes in the default partition, each with procs processors.
func newTestContext(t *testing.T, conf string, nodes, procs int) (*Context, *events.EventStore) {
	t.Helper()
	pc, err := configs.LoadPlacementConfigFromByteArray([]byte(conf))
	assert.NilError(t, err, "config load failed")
	store := events.NewEventStore(500)
	ctx, err := NewContext(pc, testNow, store, nil)
	assert.NilError(t, err, "context create failed")
	for i := 1; i <= nodes; i++ {
		addNode(t, ctx, "node-"+strconv.Itoa(i), partition1, procs)
	}
	return ctx, store
}

func addNode(t *testing.T, ctx *Context, id, partition string, procs int) *objects.Node {
	t.Helper()
	node := objects.NewNode(id, partition, resources.NewProcMem(resources.Quantity(procs), resources.Quantity(procs*1024)))
	assert.NilError(t, ctx.GetCluster().AddNode(node), "node add failed")
	return node
}

// newJob creates a one proc per task job and adds it to the job table.
func newJob(t *testing.T, ctx *Context, id string, tasks int, wallclock time.Duration) *objects.Job {
	t.Helper()
	job := objects.NewJob(id, testUser, objects.NewRequirement(tasks, resources.NewProcMem(1, 0)))
	job.WallClock = wallclock
	job.SystemQueueTime = testNow
	assert.NilError(t, ctx.GetCluster().AddJob(job), "job add failed")
	return job
}

// runJob starts a one proc per task job for the user now, with the tasks on each of the nodes.
func runJob(t *testing.T, ctx *Context, id, user string, wallclock time.Duration, tasks int, nodeIDs ...string) *objects.Job {
	t.Helper()
	c := ctx.GetCluster()
	job := objects.NewJob(id, user, objects.NewRequirement(tasks*len(nodeIDs), resources.NewProcMem(1, 0)))
	job.WallClock = wallclock
	assert.NilError(t, c.AddJob(job), "job add failed")
	var nl objects.NodeList
	for _, nodeID := range nodeIDs {
		node := c.GetNode(nodeID)
		assert.Assert(t, node != nil, "node %s not found", nodeID)
		nl.Add(node, tasks)
	}
	assert.NilError(t, c.StartJob(job, []objects.NodeList{nl}, c.Now), "job start failed")
	return job
}

// findEvent returns the first event for the object with the change type and detail.
func findEvent(store *events.EventStore, objectID string, change events.ChangeType, detail string) *events.EventRecord {
	for _, ev := range store.FindByObject(objectID) {
		if ev.ChangeType == change && ev.Detail == detail {
			return ev
		}
	}
	return nil
}
