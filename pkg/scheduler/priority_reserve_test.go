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

	"github.com/opentracing/opentracing-go/mocktracer"
	"gotest.tools/v3/assert"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
	"github.com/apache/yunikorn-placement/pkg/scheduler/preemption"
	"github.com/apache/yunikorn-placement/pkg/trace"
)

func TestPriorityReserveRejected(t *testing.T) {
	testCases := []struct {
		name    string
		conf    string
		prepare func(ctx *Context, job *objects.Job)
		bucket  bool
	}{
		{"job on hold", baseConfig, func(_ *Context, job *objects.Job) {
			job.Holds = objects.HoldUser
		}, false},
		{"QOS without reservations", baseConfig + `
qos:
  - name: free
    noReservation: true
`, func(ctx *Context, job *objects.Job) {
			job.Credential.QOS = ctx.GetCluster().GetQOS("free")
		}, false},
		{"preempt backfill", `
partitions:
  - name: default
    backfillPolicy: preempt
`, nil, false},
		{"bypass threshold", `
partitions:
  - name: default
    reservationThreshold:
      type: bypass
      value: 2
`, func(_ *Context, job *objects.Job) {
			job.BypassCount = 2
		}, true},
		{"queue time threshold", `
partitions:
  - name: default
    reservationThreshold:
      type: queuetime
      value: 3600
`, nil, true},
		{"no bucket for QOS", baseConfig + `
qos:
  - name: high
qosBuckets:
  - name: premium
    rsvDepth: 4
    qos: [high]
`, nil, true},
		{"QOS threshold without bucket", baseConfig + `
qos:
  - name: high
  - name: urgent
    queueTimeRsvThreshold: 1m
qosBuckets:
  - name: premium
    rsvDepth: 4
    qos: [high]
`, func(ctx *Context, job *objects.Job) {
			job.Credential.QOS = ctx.GetCluster().GetQOS("urgent")
			job.SystemQueueTime = testNow.Add(-time.Hour)
		}, true},
		{"never without feasibility check", `
scheduler:
  disableJobFeasibilityCheck: true
partitions:
  - name: default
    reservationPolicy: never
`, nil, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := newTestContext(t, tc.conf, 2, 4)
			job := newJob(t, ctx, "job-1", 4, time.Hour)
			if tc.prepare != nil {
				tc.prepare(ctx, job)
			}
			bucket, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
			assert.Assert(t, errors.Is(err, common.ErrPolicyRejected), "unexpected error: %v", err)
			assert.Equal(t, bucket, tc.bucket)
			assert.Assert(t, job.Rsv == nil)
			assert.Equal(t, len(ctx.GetCluster().GetReservations()), 0)
		})
	}
}

func TestPriorityReserveGranted(t *testing.T) {
	conf := `
partitions:
  - name: default
    reservationThreshold:
      type: bypass
      value: 2
`
	ctx, _ := newTestContext(t, conf, 2, 4)
	job := newJob(t, ctx, "job-1", 4, time.Hour)
	job.BypassCount = 3
	job.StartPriority[partition1] = 42

	bucket, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Assert(t, !bucket)
	rsv := job.Rsv
	assert.Assert(t, rsv != nil, "job not reserved")
	assert.Equal(t, rsv.Type, objects.RsvTypePriority)
	assert.Equal(t, rsv.Priority, int64(42))
	assert.Assert(t, rsv.HasFlag(objects.RsvFlagPreemptible))
	// a priority reservation follows a failed start attempt, it waits for the retry interval
	assert.Equal(t, rsv.Start, testNow.Add(configs.DefaultReservationRetryInterval))
	assert.Equal(t, rsv.BucketIndex, 0)
	assert.Equal(t, ctx.GetBuckets().Count(0), 1)
	assert.Equal(t, ctx.GetBuckets().PartitionCount(partition1), 1)
}

func TestPriorityReserveRecentlyModified(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	job := newJob(t, ctx, "job-1", 4, time.Hour)
	_, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	first := job.Rsv

	_, err = ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.Assert(t, errors.Is(err, common.ErrPolicyRejected))
	assert.Equal(t, job.Rsv, first)

	later := testNow.Add(3 * time.Minute)
	ctx.NextIteration(later)
	_, err = ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Assert(t, first.IsReleased())
	assert.Equal(t, job.Rsv.Start, later.Add(configs.DefaultReservationRetryInterval))
	// the slot moved with the reservation
	assert.Equal(t, ctx.GetBuckets().Count(0), 1)
}

func TestPriorityReserveBucketFull(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	job1 := newJob(t, ctx, "job-1", 4, time.Hour)
	job2 := newJob(t, ctx, "job-2", 4, time.Hour)

	_, err := ctx.PriorityReserve(job1, partition1, true, time.Time{})
	assert.NilError(t, err)
	bucket, err := ctx.PriorityReserve(job2, partition1, true, time.Time{})
	assert.Assert(t, errors.Is(err, common.ErrBucketFull), "unexpected error: %v", err)
	assert.Assert(t, bucket)
	assert.Assert(t, job2.Rsv == nil)

	// releasing the reservation frees the slot
	assert.Assert(t, ctx.ReleaseReservation(job1.Rsv))
	assert.Equal(t, ctx.GetBuckets().Count(0), 0)
	assert.Assert(t, !ctx.ReleaseReservation(job1.Rsv))
	assert.Equal(t, ctx.GetBuckets().Count(0), 0)
	bucket, err = ctx.PriorityReserve(job2, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Assert(t, !bucket)
	assert.Equal(t, ctx.GetBuckets().Count(0), 1)
}

func TestPriorityReservePartitionDepth(t *testing.T) {
	conf := `
partitions:
  - name: default
    bucketRsvDepth: 2
`
	ctx, _ := newTestContext(t, conf, 3, 4)
	for _, id := range []string{"job-1", "job-2"} {
		job := newJob(t, ctx, id, 4, time.Hour)
		_, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
		assert.NilError(t, err, "job %s not reserved", id)
	}
	assert.Equal(t, ctx.GetBuckets().PartitionCount(partition1), 2)
	job3 := newJob(t, ctx, "job-3", 4, time.Hour)
	bucket, err := ctx.PriorityReserve(job3, partition1, true, time.Time{})
	assert.Assert(t, errors.Is(err, common.ErrBucketFull))
	assert.Assert(t, bucket)
}

func TestPriorityReserveQOSThreshold(t *testing.T) {
	conf := baseConfig + `
qos:
  - name: high
    queueTimeRsvThreshold: 10m
`
	ctx, _ := newTestContext(t, conf, 2, 4)
	job1 := newJob(t, ctx, "job-1", 4, time.Hour)
	_, err := ctx.PriorityReserve(job1, partition1, true, time.Time{})
	assert.NilError(t, err)

	// the bucket is full, the threshold bypasses it
	job2 := newJob(t, ctx, "job-2", 4, time.Hour)
	job2.Credential.QOS = ctx.GetCluster().GetQOS("high")
	job2.SystemQueueTime = testNow.Add(-time.Hour)
	bucket, err := ctx.PriorityReserve(job2, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Assert(t, !bucket)
	assert.Equal(t, job2.Rsv.Type, objects.RsvTypeQOSReserved)
	assert.Equal(t, job2.Rsv.BucketIndex, -1)
	assert.Equal(t, job2.Rsv.Start, testNow)
	assert.Equal(t, ctx.GetBuckets().Count(0), 1)
}

func TestPriorityReserveFeasibilityProbe(t *testing.T) {
	conf := `
partitions:
  - name: default
    backfillPolicy: none
`
	ctx, _ := newTestContext(t, conf, 1, 4)
	fits := newJob(t, ctx, "fits", 4, time.Hour)
	bucket, err := ctx.PriorityReserve(fits, partition1, true, time.Time{})
	assert.Assert(t, errors.Is(err, common.ErrPolicyRejected))
	assert.Assert(t, bucket)
	assert.Equal(t, fits.Holds, objects.HoldType(0))
	assert.Assert(t, fits.Rsv == nil)

	tooBig := newJob(t, ctx, "too-big", 8, time.Hour)
	bucket, err = ctx.PriorityReserve(tooBig, partition1, true, time.Time{})
	assert.Assert(t, errors.Is(err, common.ErrPolicyRejected))
	assert.Assert(t, bucket)
	assert.Assert(t, tooBig.Holds&objects.HoldDefer != 0, "job not deferred")
	assert.Equal(t, tooBig.HoldReason, holdReasonNoResources)
	assert.Equal(t, len(ctx.GetCluster().GetReservations()), 0)
}

func TestPriorityReservePreemptingJob(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	job := newJob(t, ctx, "job-1", 4, time.Hour)
	assert.NilError(t, ctx.Reserve(job, "", time.Time{}, objects.RsvTypeTimeLock, false))
	previous := job.Rsv

	ctx.NextIteration(testNow.Add(3 * time.Minute))
	job.SetFlag(objects.FlagPreempting)
	bucket, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Assert(t, !bucket)
	assert.Equal(t, job.Rsv, previous)
	assert.Assert(t, !previous.HasFlag(objects.RsvFlagPreemptible), "old reservation marked preemptible")
	assert.Equal(t, previous.BucketIndex, -1)
	assert.Equal(t, ctx.GetBuckets().Count(0), 0)
}

func TestPriorityReservePreemptor(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	low := runJob(t, ctx, "low", "other", 2*time.Hour, 4, "node-1", "node-2")
	low.StartPriority[""] = 1
	low.SetFlag(objects.FlagPreemptee)

	job := newJob(t, ctx, "preemptor", 4, time.Hour)
	job.StartPriority[""] = 10
	job.SetFlag(objects.FlagPreemptor)

	res, err := ctx.FindPreemptible(&preemption.Request{Preemptor: job, Priority: 10, Partition: partition1})
	assert.NilError(t, err)
	assert.DeepEqual(t, res.JobIDs(), []string{"low"})

	bucket, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Assert(t, !bucket)
	rsv := job.Rsv
	assert.Equal(t, rsv.Start, testNow)
	assert.Equal(t, rsv.TotalTaskCount(), 4)
	assert.DeepEqual(t, rsv.Preemptees, []string{"low"})

	// a job that is not a preemptor waits for the running work
	waiter := newJob(t, ctx, "waiter", 4, time.Hour)
	sel, err := ctx.EarliestStart(waiter, partition1, time.Time{}, objects.RsvTypeTimeLock)
	assert.NilError(t, err)
	assert.Equal(t, sel.Start, testNow.Add(2*time.Hour))
	assert.Equal(t, len(sel.Preemptees), 0)
}

func TestReleasePriorityReservations(t *testing.T) {
	ctx, _ := newTestContext(t, baseConfig, 2, 4)
	job := newJob(t, ctx, "job-1", 4, time.Hour)
	_, err := ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	other := newJob(t, ctx, "job-2", 4, time.Hour)
	assert.NilError(t, ctx.Reserve(other, "", time.Time{}, objects.RsvTypeTimeLock, false))

	assert.Equal(t, ctx.ReleasePriorityReservations(), 1)
	assert.Assert(t, job.Rsv == nil)
	assert.Assert(t, other.Rsv != nil, "time lock reservation released")
	assert.Equal(t, ctx.GetBuckets().Count(0), 0)
	assert.Equal(t, ctx.ReleasePriorityReservations(), 0)

	// the highest policy keeps priority reservations
	ctx, _ = newTestContext(t, "scheduler:\n  reservationPolicy: highest\n"+baseConfig, 2, 4)
	job = newJob(t, ctx, "job-1", 4, time.Hour)
	_, err = ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	assert.Equal(t, ctx.ReleasePriorityReservations(), 0)
}

func TestPriorityReserveTrace(t *testing.T) {
	pc, err := configs.LoadPlacementConfigFromByteArray([]byte(baseConfig))
	assert.NilError(t, err)
	tracer := mocktracer.New()
	ctx, err := NewContext(pc, testNow, nil, tracer)
	assert.NilError(t, err)
	addNode(t, ctx, "node-1", partition1, 4)
	job := newJob(t, ctx, "job-1", 4, time.Hour)

	_, err = ctx.PriorityReserve(job, partition1, true, time.Time{})
	assert.NilError(t, err)
	finished := tracer.FinishedSpans()
	assert.Assert(t, len(finished) >= 3, "expected nested spans, got %d", len(finished))
	root := finished[len(finished)-1]
	assert.Equal(t, root.OperationName, "[job]priorityReserve")
	assert.Equal(t, root.Tag(trace.StateKey), trace.ReservedState)
	assert.Equal(t, root.ParentID, 0)
	assert.Equal(t, finished[0].Tag(trace.PhaseKey), trace.SearchPhase)
}

func TestTriggerReached(t *testing.T) {
	job := objects.NewJob("job-1", testUser)
	job.WallClock = time.Hour
	job.SystemQueueTime = testNow.Add(-time.Hour)
	job.BypassCount = 5

	testCases := []struct {
		threshold configs.ThresholdConfig
		expected  bool
	}{
		{configs.ThresholdConfig{}, true},
		{configs.ThresholdConfig{Type: configs.ThresholdNone}, true},
		{configs.ThresholdConfig{Type: configs.ThresholdBypass, Value: 4}, true},
		{configs.ThresholdConfig{Type: configs.ThresholdBypass, Value: 5}, false},
		{configs.ThresholdConfig{Type: configs.ThresholdQueueTime, Value: 3599}, true},
		{configs.ThresholdConfig{Type: configs.ThresholdQueueTime, Value: 3600}, false},
		{configs.ThresholdConfig{Type: configs.ThresholdXFactor, Value: 1.5}, true},
		{configs.ThresholdConfig{Type: configs.ThresholdXFactor, Value: 2}, false},
		{configs.ThresholdConfig{Type: "unknown"}, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, triggerReached(job, tc.threshold, testNow), tc.expected, "threshold %v", tc.threshold)
	}
}
