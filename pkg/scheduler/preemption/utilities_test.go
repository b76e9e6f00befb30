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

package preemption

import (
	"strconv"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

const (
	partition1 = "default"
	preemptor  = "preemptor"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const baseConfig = `
partitions:
  - name: default
  - name: other
`

func newTestCluster(t *testing.T, conf string, nodes, procs int) *objects.Cluster {
	t.Helper()
	pc, err := configs.LoadPlacementConfigFromByteArray([]byte(conf))
	assert.NilError(t, err, "config load failed")
	c, err := objects.NewCluster(pc, testNow)
	assert.NilError(t, err, "cluster create failed")
	for i := 1; i <= nodes; i++ {
		node := objects.NewNode("node-"+strconv.Itoa(i), partition1, resources.NewProcMem(resources.Quantity(procs), 0))
		assert.NilError(t, c.AddNode(node), "node add failed")
	}
	return c
}

// startJob starts a one proc per task job with the priority on the nodes, tasks per node.
func startJob(t *testing.T, c *objects.Cluster, id, user string, priority int64, flags objects.JobFlag, tasks int, nodeIDs ...string) *objects.Job {
	t.Helper()
	job := objects.NewJob(id, user, objects.NewRequirement(tasks*len(nodeIDs), resources.NewProcMem(1, 0)))
	job.StartPriority[""] = priority
	job.Flags = flags
	job.WallClock = time.Hour
	assert.NilError(t, c.AddJob(job), "job add failed")
	var nl objects.NodeList
	for _, id := range nodeIDs {
		node := c.GetNode(id)
		assert.Assert(t, node != nil, "node %s not found", id)
		nl.Add(node, tasks)
	}
	assert.NilError(t, c.StartJob(job, []objects.NodeList{nl}, c.Now.Add(-time.Hour)), "job start failed")
	return job
}

func newPreemptor(tasks int) *objects.Job {
	job := objects.NewJob(preemptor, "boss", objects.NewRequirement(tasks, resources.NewProcMem(1, 0)))
	job.SetFlag(objects.FlagPreemptor)
	job.WallClock = time.Hour
	return job
}

func candidates(c *objects.Cluster, ids ...string) objects.NodeList {
	var nl objects.NodeList
	for _, id := range ids {
		nl.Add(c.GetNode(id), 0)
	}
	return nl
}

type fakeProber struct {
	fail  map[string]bool
	calls []string
}

func (fp *fakeProber) ProbeNode(_ *objects.Job, req *objects.Requirement, node *objects.Node, preemptees []*objects.Job, _ time.Time) (int, bool) {
	fp.calls = append(fp.calls, node.ID)
	if fp.fail[node.ID] {
		return 0, false
	}
	free := node.GetAvailableResource()
	for _, nj := range node.GetJobs() {
		for _, p := range preemptees {
			if nj.Job == p {
				free.AddTo(resources.Multiply(nj.PerTask, nj.Tasks))
			}
		}
	}
	return resources.TasksFit(free, req.PerTask), true
}
