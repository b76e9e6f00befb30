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
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/log"
)

type ReservationType int

const (
	// administrative or standing reservation, not owned by a job
	RsvTypeUser ReservationType = iota
	// regular job reservation created by backfill or a reservation retry
	RsvTypeTimeLock
	// priority reservation granted by the reservation gate
	RsvTypePriority
	// reservation granted because a QOS threshold was reached, or forced
	RsvTypeQOSReserved
	// reservation for a job with a deadline
	RsvTypeDeadline
)

func (t ReservationType) String() string {
	return [...]string{"User", "TimeLock", "Priority", "QOSReserved", "Deadline"}[t]
}

type RsvFlag uint32

const (
	RsvFlagPreemptible RsvFlag = 1 << iota
	// owner of the reservation may preempt other jobs running inside it
	RsvFlagOwnerPreempt
	// owner preemption does not wait for the preemptee minimum run time
	RsvFlagOwnerPreemptIgnoreMinTime
)

// ReqAlloc is the allocation of one requirement inside a reservation.
type ReqAlloc struct {
	ReqIndex int
	PerTask  *resources.Resource
	Nodes    NodeList
}

// Reservation binds tasks on nodes for a time window.
// Job reservations reference their job by ID, the job table owns the job.
type Reservation struct {
	ID        string
	Name      string
	JobID     string
	Type      ReservationType
	Partition string
	Start     time.Time
	End       time.Time
	Allocs    []*ReqAlloc
	Priority  int64
	Flags     RsvFlag

	// credentials of the owner of a non job reservation
	OwnerUser    string
	OwnerGroup   string
	OwnerAccount string

	CreatedAt  time.Time
	ModifiedAt time.Time

	// bucket charges, released with the reservation
	BucketIndex     int
	BucketPartition string

	// reservations committed together for a master sync job
	Linked []*Reservation
	// IDs of the active jobs that must be preempted before the reservation can start
	Preemptees []string

	stateMachine *fsm.FSM
}

// NewJobReservation creates a reservation for the job, the reservation is not committed.
func NewJobReservation(job *Job, rsvType ReservationType, partition string, start time.Time, allocs []*ReqAlloc, now time.Time) *Reservation {
	return &Reservation{
		ID:           common.GetNewUUID(),
		Name:         job.ID,
		JobID:        job.ID,
		Type:         rsvType,
		Partition:    partition,
		Start:        start,
		End:          common.AddDuration(start, job.WallClock),
		Allocs:       allocs,
		CreatedAt:    now,
		ModifiedAt:   now,
		BucketIndex:  -1,
		stateMachine: NewReservationState(),
	}
}

// NewUserReservation creates an administrative reservation on the nodes.
func NewUserReservation(name, partition string, start, end time.Time, nodes NodeList, perTask *resources.Resource) *Reservation {
	return &Reservation{
		ID:           common.GetNewUUID(),
		Name:         name,
		Type:         RsvTypeUser,
		Partition:    partition,
		Start:        start,
		End:          end,
		Allocs:       []*ReqAlloc{{PerTask: perTask, Nodes: nodes}},
		CreatedAt:    start,
		ModifiedAt:   start,
		BucketIndex:  -1,
		stateMachine: NewReservationState(),
	}
}

func (r *Reservation) String() string {
	if r == nil {
		return "nil reservation"
	}
	return fmt.Sprintf("%s[%s] %s job=%s partition=%s tasks=%d", r.Name, r.ID, r.Type, r.JobID, r.Partition, r.TaskCount())
}

func (r *Reservation) HasFlag(flag RsvFlag) bool {
	return r.Flags&flag != 0
}

func (r *Reservation) SetFlag(flag RsvFlag) {
	r.Flags |= flag
}

func (r *Reservation) IsJobReservation() bool {
	return r.JobID != ""
}

// TaskCount returns the number of tasks bound over all requirements and nodes.
func (r *Reservation) TaskCount() int {
	tc := 0
	for _, a := range r.Allocs {
		tc += a.Nodes.TaskCount()
	}
	return tc
}

// TotalTaskCount returns the tasks bound by the reservation and its linked reservations.
func (r *Reservation) TotalTaskCount() int {
	tc := r.TaskCount()
	for _, l := range r.Linked {
		tc += l.TaskCount()
	}
	return tc
}

// Nodes returns the bound nodes merged over all requirements.
func (r *Reservation) Nodes() NodeList {
	var nl NodeList
	for _, a := range r.Allocs {
		for _, nt := range a.Nodes {
			nl.Add(nt.Node, nt.TaskCount)
		}
	}
	return nl
}

// TasksOn returns the tasks bound on the node.
func (r *Reservation) TasksOn(nodeID string) int {
	tc := 0
	for _, a := range r.Allocs {
		tc += a.Nodes.Get(nodeID)
	}
	return tc
}

// ResourceOn returns the resources the reservation consumes on the node.
func (r *Reservation) ResourceOn(nodeID string) *resources.Resource {
	res := resources.NewResource()
	for _, a := range r.Allocs {
		if tc := a.Nodes.Get(nodeID); tc > 0 {
			res.AddTo(resources.Multiply(a.PerTask, tc))
		}
	}
	return res
}

// Overlaps returns true if the reservation is live at any point in [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End.After(start)
}

// ActiveAt returns true if t lies in [Start, End).
func (r *Reservation) ActiveAt(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r *Reservation) CurrentState() string {
	return r.stateMachine.Current()
}

func (r *Reservation) IsReleased() bool {
	return r.stateMachine.Current() == RsvReleased.String()
}

func (r *Reservation) IsCommitted() bool {
	return r.stateMachine.Current() == RsvActive.String()
}

// Commit marks the reservation active.
func (r *Reservation) Commit() error {
	return r.handleEvent(CommitReservation)
}

// Release marks the reservation released, releasing twice is an error.
func (r *Reservation) Release() error {
	return r.handleEvent(ReleaseReservation)
}

func (r *Reservation) handleEvent(event ReservationEvent) error {
	err := r.stateMachine.Event(context.Background(), event.String(), r)
	if err != nil {
		log.Log(log.Objects).Debug("reservation state change failed",
			zap.String("reservationID", r.ID),
			zap.Stringer("event", event),
			zap.Error(err))
	}
	return err
}
