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
	"strings"
	"time"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
)

type JobState int

const (
	JobIdle JobState = iota
	JobActive
	JobSuspended
	JobCompleted
	JobRemoved
)

func (s JobState) String() string {
	return [...]string{"Idle", "Active", "Suspended", "Completed", "Removed"}[s]
}

// JobFlag marks job level behaviour, flags can be combined.
type JobFlag uint32

const (
	// job may preempt lower priority work
	FlagPreemptor JobFlag = 1 << iota
	// job may be preempted
	FlagPreemptee
	// job requested an explicit host list
	FlagHostList
	// placement must never be skipped, fall back to a forced reservation
	FlagReserveAlways
	// reservations of all requirements are created together and linked
	FlagMasterSync
	// job is a VM migration
	FlagVMMigrate
	// job is currently preempting other work
	FlagPreempting
	// job never runs longer than its wallclock limit
	FlagIgnoreWallClock
)

// HoldType is a bit mask of holds on a job.
type HoldType uint32

const (
	HoldUser HoldType = 1 << iota
	HoldSystem
	HoldBatch
	HoldDefer
)

func (h HoldType) String() string {
	if h == 0 {
		return "None"
	}
	var names []string
	for i, name := range []string{"User", "System", "Batch", "Defer"} {
		if h&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

type DependType int

const (
	DependCompletion DependType = iota
	DependSuccessfulCompletion
	DependStart
	DependFailure
)

// Dependency references the prerequisite job by ID, the job table owns the job.
type Dependency struct {
	Type  DependType
	JobID string
}

type SystemJobType int

const (
	SystemJobGeneric SystemJobType = iota
	SystemJobVMMigrate
	SystemJobProvision
	SystemJobStorage
)

type SystemJob struct {
	Type SystemJobType
}

// Credential of the job owner, the QOS drives reservation entitlement.
type Credential struct {
	User    string
	Group   string
	Account string
	Class   string
	QOS     *QOS
}

// Shape is one alternative task count and wallclock pair of a malleable job.
type Shape struct {
	TaskCount int
	WallClock time.Duration
}

// Job as seen by the placement core.
// The scheduling loop owns the job, the placement core updates the reservation, holds and active shape.
type Job struct {
	ID           string
	Credential   Credential
	Requirements []*Requirement
	// alternative shapes, applied to the first requirement
	Shapes    []Shape
	WallClock time.Duration
	Flags     JobFlag
	State     JobState
	System    *SystemJob

	// reservation currently held by the job
	Rsv *Reservation

	Holds       HoldType
	HoldReason  string
	HoldMessage string
	HoldUntil   time.Time

	Dependencies []Dependency
	// partitions the job may run in, empty means all
	PartitionAccess []string
	// partition of an active job or the reservation partition
	Partition string
	// per partition start priority, "" is the default for all partitions
	StartPriority map[string]int64
	BypassCount   int

	SubmitTime      time.Time
	SystemQueueTime time.Time
	MinStartTime    time.Time
	StartTime       time.Time
	// completion time of the job as projected by its last reservation
	CompletionTime time.Time
	// minimum run time before the job can be preempted
	MinPreemptTime time.Duration

	// explicit host expression, requires FlagHostList
	HostList []string
	// node access policy of the job, stricter than the node policy wins
	NodeAccess NodeAccessPolicy
	// name of the reservation the job must run in
	RequiredReservation string
	// nodes the active job runs on, one list per requirement
	AllocNodes []NodeList
}

func NewJob(id string, user string, reqs ...*Requirement) *Job {
	job := &Job{
		ID:            id,
		Credential:    Credential{User: user},
		Requirements:  reqs,
		StartPriority: make(map[string]int64),
		NodeAccess:    AccessShared,
	}
	for i, rq := range reqs {
		rq.Index = i
	}
	return job
}

func (j *Job) String() string {
	if j == nil {
		return "nil job"
	}
	return fmt.Sprintf("job %s (user %s, state %s, tasks %d)", j.ID, j.Credential.User, j.State, j.TaskCount())
}

func (j *Job) HasFlag(flag JobFlag) bool {
	return j.Flags&flag != 0
}

func (j *Job) SetFlag(flag JobFlag) {
	j.Flags |= flag
}

func (j *Job) ClearFlag(flag JobFlag) {
	j.Flags &^= flag
}

func (j *Job) IsActive() bool {
	return j.State == JobActive || j.State == JobSuspended
}

func (j *Job) IsSystemJob() bool {
	return j.System != nil
}

// TaskCount returns the sum of the tasks over all requirements.
func (j *Job) TaskCount() int {
	tc := 0
	for _, rq := range j.Requirements {
		tc += rq.TaskCount
	}
	return tc
}

// TotalProcs returns the processors requested over all requirements.
func (j *Job) TotalProcs() resources.Quantity {
	var procs resources.Quantity
	for _, rq := range j.Requirements {
		procs += rq.PerTask.Procs() * resources.Quantity(rq.TaskCount)
	}
	return procs
}

// Priority returns the start priority in the partition, falling back to the default priority.
func (j *Job) Priority(partition string) int64 {
	if p, ok := j.StartPriority[partition]; ok {
		return p
	}
	return j.StartPriority[""]
}

// EndTime returns the projected end of an active job.
func (j *Job) EndTime() time.Time {
	return common.AddDuration(j.StartTime, j.WallClock)
}

// QueueTime returns the time the job has been eligible in the queue.
func (j *Job) QueueTime(now time.Time) time.Duration {
	if j.SystemQueueTime.IsZero() || now.Before(j.SystemQueueTime) {
		return 0
	}
	return now.Sub(j.SystemQueueTime)
}

// XFactor returns the expansion factor: (queue time + wallclock) / wallclock.
func (j *Job) XFactor(now time.Time) float64 {
	wc := j.WallClock
	if wc <= 0 {
		wc = time.Second
	}
	return (float64(j.QueueTime(now)) + float64(wc)) / float64(wc)
}

// CanAccessPartition checks the job partition access list.
func (j *Job) CanAccessPartition(name string) bool {
	if len(j.PartitionAccess) == 0 {
		return true
	}
	for _, p := range j.PartitionAccess {
		if p == name {
			return true
		}
	}
	return false
}

// SetHold adds a hold to the job, the hold expires at until when it is set.
func (j *Job) SetHold(hold HoldType, until time.Time, reason, message string) {
	j.Holds |= hold
	j.HoldUntil = until
	j.HoldReason = reason
	j.HoldMessage = message
}

func (j *Job) ClearHolds() {
	j.Holds = 0
	j.HoldUntil = time.Time{}
	j.HoldReason = ""
	j.HoldMessage = ""
}

// ApplyShape sets the task count of the first requirement and the wallclock to the shape.
// Zero fields of the shape leave the job unchanged.
func (j *Job) ApplyShape(shape Shape) {
	if len(j.Requirements) > 0 && shape.TaskCount > 0 {
		j.Requirements[0].TaskCount = shape.TaskCount
	}
	if shape.WallClock > 0 {
		j.WallClock = shape.WallClock
	}
}

// CurrentShape returns the shape the job is set to.
func (j *Job) CurrentShape() Shape {
	shape := Shape{WallClock: j.WallClock}
	if len(j.Requirements) > 0 {
		shape.TaskCount = j.Requirements[0].TaskCount
	}
	return shape
}

// ShapeList returns the shapes to evaluate, the current shape when no alternatives are defined.
func (j *Job) ShapeList() []Shape {
	if len(j.Shapes) == 0 {
		return []Shape{j.CurrentShape()}
	}
	return j.Shapes
}
