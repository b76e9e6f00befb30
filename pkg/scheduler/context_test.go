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
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

func TestNewContext(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	assert.Assert(t, ctx.GetCluster() != nil)
	assert.Assert(t, ctx.GetCalendar() != nil)
	assert.Assert(t, ctx.GetFinder() != nil)
	assert.Assert(t, ctx.GetBuckets() != nil)
	assert.Equal(t, ctx.GetCluster().Now, testNow)
	// a default bucket open to all QOS is always configured
	assert.Equal(t, ctx.GetBuckets().IndexFor(nil), 0)
	assert.Equal(t, ctx.conf().ReservationRetryInterval, configs.DefaultReservationRetryInterval)
}

func TestNextIteration(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 1, 4)
	iteration := ctx.GetCluster().Iteration
	ctx.NextIteration(testNow.Add(time.Minute))
	assert.Equal(t, ctx.GetCluster().Iteration, iteration+1)
	assert.Equal(t, ctx.GetCluster().Now, testNow.Add(time.Minute))
}

func TestReleaseReservation(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	assert.Assert(t, !ctx.ReleaseReservation(nil))

	job := newJob(t, ctx, "job-1", 4, time.Hour)
	assert.NilError(t, ctx.Reserve(job, "", time.Time{}, objects.RsvTypeTimeLock, false))
	rsv := job.Rsv
	assert.Assert(t, ctx.GetBuckets().Charge(rsv, 0, partition1))
	assert.Equal(t, ctx.GetBuckets().Count(0), 1)

	assert.Assert(t, ctx.ReleaseReservation(rsv))
	assert.Assert(t, rsv.IsReleased())
	assert.Equal(t, ctx.GetBuckets().Count(0), 0)
	assert.Equal(t, ctx.GetBuckets().PartitionCount(partition1), 0)
	assert.Equal(t, len(ctx.GetCluster().GetReservations()), 0)
}
