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
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
)

func TestJobReservation(t *testing.T) {
	nodes := newProcNodes(2, 4)
	job := newProcJob(jobID1, 6, time.Hour)
	allocs := []*ReqAlloc{{
		ReqIndex: 0,
		PerTask:  job.Requirements[0].PerTask,
		Nodes:    NodeList{{Node: nodes[0], TaskCount: 4}, {Node: nodes[1], TaskCount: 2}},
	}}
	rsv := NewJobReservation(job, RsvTypePriority, partition1, testNow, allocs, testNow)
	assert.Equal(t, rsv.End, testNow.Add(time.Hour))
	assert.Equal(t, rsv.TaskCount(), 6)
	assert.Equal(t, rsv.TasksOn("node-2"), 2)
	assert.Assert(t, resources.Equals(rsv.ResourceOn("node-1"), resources.NewProcMem(4, 0)))
	assert.Assert(t, resources.IsZero(rsv.ResourceOn("node-3")))
	assert.Equal(t, rsv.BucketIndex, -1)
	assert.Assert(t, rsv.IsJobReservation())
	assert.Assert(t, rsv.Overlaps(testNow.Add(30*time.Minute), testNow.Add(2*time.Hour)))
	assert.Assert(t, !rsv.Overlaps(testNow.Add(time.Hour), testNow.Add(2*time.Hour)))
	assert.Assert(t, rsv.ActiveAt(testNow))
	assert.Assert(t, !rsv.ActiveAt(testNow.Add(time.Hour)))
}

func TestReservationInfiniteWallclock(t *testing.T) {
	job := newProcJob(jobID1, 1, common.Infinite)
	rsv := NewJobReservation(job, RsvTypeTimeLock, partition1, testNow, nil, testNow)
	assert.Equal(t, rsv.End, common.MaxTime)
}

func TestReservationLifecycle(t *testing.T) {
	job := newProcJob(jobID1, 1, time.Hour)
	rsv := NewJobReservation(job, RsvTypeTimeLock, partition1, testNow, nil, testNow)
	assert.Equal(t, rsv.CurrentState(), RsvCreated.String())
	assert.NilError(t, rsv.Commit())
	assert.Assert(t, rsv.IsCommitted())
	assert.Assert(t, rsv.Commit() != nil, "commit of an active reservation must fail")
	assert.NilError(t, rsv.Release())
	assert.Assert(t, rsv.IsReleased())
	assert.Assert(t, rsv.Release() != nil, "release of a released reservation must fail")
}

func TestReservationReleaseUncommitted(t *testing.T) {
	rsv := NewUserReservation("maint", partition1, testNow, testNow.Add(time.Hour), nil, nil)
	assert.Assert(t, !rsv.IsJobReservation())
	assert.NilError(t, rsv.Release())
	assert.Assert(t, rsv.Commit() != nil)
}

func TestReservationFlags(t *testing.T) {
	rsv := NewUserReservation("standing", partition1, testNow, testNow.Add(time.Hour), nil, nil)
	rsv.SetFlag(RsvFlagOwnerPreempt)
	assert.Assert(t, rsv.HasFlag(RsvFlagOwnerPreempt))
	assert.Assert(t, !rsv.HasFlag(RsvFlagPreemptible))
	assert.Equal(t, RsvTypeQOSReserved.String(), "QOSReserved")
}
