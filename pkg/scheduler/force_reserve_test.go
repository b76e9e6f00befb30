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
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/scheduler/nodeset"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

func TestForceReserveErrors(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	assert.Assert(t, errors.Is(ctx.ForceReserve(nil, ""), common.ErrMalformedInput))

	multi := objects.NewJob("multi", testUser,
		objects.NewRequirement(1, resources.NewProcMem(1, 0)),
		objects.NewRequirement(1, resources.NewProcMem(1, 0)))
	multi.HostList = []string{"node-1"}
	assert.Assert(t, errors.Is(ctx.ForceReserve(multi, ""), common.ErrMultiReqForce))

	noHosts := newJob(t, ctx, "no-hosts", 1, time.Hour)
	assert.Assert(t, errors.Is(ctx.ForceReserve(noHosts, ""), common.ErrNoHostList))

	unknown := newJob(t, ctx, "unknown", 1, time.Hour)
	unknown.HostList = []string{"node-9"}
	assert.Assert(t, errors.Is(ctx.ForceReserve(unknown, ""), common.ErrInfeasibleEver))

	// the host list cannot hold the tasks
	tooBig := newJob(t, ctx, "too-big", 6, time.Hour)
	tooBig.HostList = []string{"node-1"}
	assert.Assert(t, errors.Is(ctx.ForceReserve(tooBig, ""), common.ErrInfeasibleNow))
	assert.Equal(t, len(ctx.GetCluster().GetReservations()), 0)
}

func TestForceReserveBusyNodes(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 3, 4)
	runJob(t, ctx, "running", "other", 2*time.Hour, 4, "node-1", "node-2")
	job := newJob(t, ctx, "forced", 6, time.Hour)
	job.HostList = []string{"node-1", "node-2"}
	assert.NilError(t, ctx.Reserve(job, "", time.Time{}, objects.RsvTypeTimeLock, false))
	previous := job.Rsv
	assert.Equal(t, previous.Start, testNow.Add(2*time.Hour))

	assert.NilError(t, ctx.ForceReserve(job, ""))
	rsv := job.Rsv
	assert.Assert(t, rsv != previous)
	assert.Assert(t, previous.IsReleased(), "previous reservation kept")
	assert.Equal(t, rsv.Type, objects.RsvTypeQOSReserved)
	assert.Equal(t, rsv.Start, testNow)
	assert.Equal(t, rsv.Partition, partition1)
	assert.Equal(t, rsv.TotalTaskCount(), 6)
	assert.Equal(t, rsv.Nodes().String(), "[node-1:4,node-2:2]")
	assert.Equal(t, job.CompletionTime, testNow.Add(time.Hour))
}

func TestForceReserveNodeSet(t *testing.T) {
	conf := `
partitions:
  - name: default
    nodeSet:
      type: feature
      selection: oneof
      list: [fast, slow]
`
	ctx, _ := newTestContext(t, conf, 0, 0)
	for _, n := range []struct {
		id      string
		feature string
	}{{"node-1", "slow"}, {"node-2", "fast"}, {"node-3", "fast"}} {
		node := addNode(t, ctx, n.id, partition1, 4)
		node.Features = []string{n.feature}
	}
	job := newJob(t, ctx, "forced", 6, time.Hour)
	job.HostList = []string{"node-1", "node-2", "node-3"}

	assert.NilError(t, ctx.ForceReserve(job, partition1))
	assert.Equal(t, job.Rsv.Nodes().String(), "[node-2:4,node-3:2]")
}

func TestSelectResourceSet(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 0, 0)
	for _, n := range []struct {
		id      string
		feature string
	}{{"node-1", "slow"}, {"node-2", "fast"}} {
		node := addNode(t, ctx, n.id, partition1, 4)
		node.Features = []string{n.feature}
	}
	job := newJob(t, ctx, "job-1", 4, time.Hour)
	var nodes objects.NodeList
	for _, id := range []string{"node-1", "node-2"} {
		nodes.Add(ctx.GetCluster().GetNode(id), 4)
	}
	_, err := ctx.SelectResourceSet(&nodeset.Request{Job: job}, nil)
	assert.Assert(t, errors.Is(err, common.ErrMalformedInput))

	p := ctx.GetCluster().GetPartition(partition1)
	r := ctx.GetCalendar().NodeSetRequest(job, job.Requirements[0], p, testNow)
	r.Config.Type = "feature"
	r.Config.Selection = "firstof"
	r.Config.List = []string{"fast", "slow"}
	name, err := ctx.SelectResourceSet(r, &nodes)
	assert.NilError(t, err)
	assert.Equal(t, name, "fast")
	assert.Equal(t, nodes.String(), "[node-2:4]")
}
