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

	"github.com/apache/yunikorn-placement/pkg/common/resources"
)

func TestNewJob(t *testing.T) {
	r1 := NewRequirement(4, resources.NewProcMem(1, 100))
	r2 := NewRequirement(2, resources.NewProcMem(2, 0))
	job := NewJob(jobID1, testUser, r1, r2)
	assert.Equal(t, job.TaskCount(), 6)
	assert.Equal(t, job.TotalProcs(), resources.Quantity(8))
	assert.Equal(t, r2.Index, 1)
	assert.Equal(t, r1.RequiredMemory(), resources.Quantity(400))
	assert.Assert(t, !job.IsActive())
	assert.Assert(t, !job.IsSystemJob())
}

func TestJobFlags(t *testing.T) {
	job := newProcJob(jobID1, 1, time.Hour)
	job.SetFlag(FlagPreemptor | FlagHostList)
	assert.Assert(t, job.HasFlag(FlagPreemptor))
	assert.Assert(t, job.HasFlag(FlagHostList))
	job.ClearFlag(FlagPreemptor)
	assert.Assert(t, !job.HasFlag(FlagPreemptor))
	assert.Assert(t, job.HasFlag(FlagHostList))
}

func TestJobHolds(t *testing.T) {
	job := newProcJob(jobID1, 1, time.Hour)
	assert.Equal(t, job.Holds.String(), "None")
	job.SetHold(HoldDefer, testNow.Add(time.Hour), "NoResources", "cannot create reservation")
	job.SetHold(HoldUser, time.Time{}, "admin", "")
	assert.Equal(t, job.Holds.String(), "User,Defer")
	job.ClearHolds()
	assert.Equal(t, job.Holds, HoldType(0))
	assert.Equal(t, job.HoldReason, "")
}

func TestJobPriority(t *testing.T) {
	job := newProcJob(jobID1, 1, time.Hour)
	job.StartPriority[""] = 10
	job.StartPriority["batch"] = 50
	assert.Equal(t, job.Priority("batch"), int64(50))
	assert.Equal(t, job.Priority("other"), int64(10))
}

func TestJobQueueTimeAndXFactor(t *testing.T) {
	job := newProcJob(jobID1, 1, time.Hour)
	assert.Equal(t, job.QueueTime(testNow), time.Duration(0))
	assert.Equal(t, job.XFactor(testNow), 1.0)
	job.SystemQueueTime = testNow.Add(-3 * time.Hour)
	assert.Equal(t, job.QueueTime(testNow), 3*time.Hour)
	assert.Equal(t, job.XFactor(testNow), 4.0)
	// queue time in the future does not count
	job.SystemQueueTime = testNow.Add(time.Hour)
	assert.Equal(t, job.QueueTime(testNow), time.Duration(0))
}

func TestJobPartitionAccess(t *testing.T) {
	job := newProcJob(jobID1, 1, time.Hour)
	assert.Assert(t, job.CanAccessPartition("any"))
	job.PartitionAccess = []string{"batch"}
	assert.Assert(t, job.CanAccessPartition("batch"))
	assert.Assert(t, !job.CanAccessPartition("default"))
}

func TestJobShapes(t *testing.T) {
	job := newProcJob(jobID1, 4, time.Hour)
	shapes := job.ShapeList()
	assert.Equal(t, len(shapes), 1)
	assert.Equal(t, shapes[0], Shape{TaskCount: 4, WallClock: time.Hour})

	job.Shapes = []Shape{{TaskCount: 8, WallClock: 30 * time.Minute}, {TaskCount: 2, WallClock: 2 * time.Hour}}
	assert.Equal(t, len(job.ShapeList()), 2)
	job.ApplyShape(job.Shapes[1])
	assert.Equal(t, job.CurrentShape(), Shape{TaskCount: 2, WallClock: 2 * time.Hour})
	assert.Equal(t, job.TaskCount(), 2)
}
