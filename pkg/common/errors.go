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

package common

import "errors"

var (
	// ErrMalformedInput returned when a required object is missing, nothing is mutated
	ErrMalformedInput = errors.New("malformed input, required object missing")
	// ErrInfeasibleNow returned when no allocation exists at the requested time, a later attempt may succeed
	ErrInfeasibleNow = errors.New("requested resources not available now")
	// ErrInfeasibleEver returned when no allocation exists at any time within the horizon
	ErrInfeasibleEver = errors.New("requested resources not available at any time")
	// ErrPolicyRejected returned when the job is not entitled to a reservation under the current policy
	ErrPolicyRejected = errors.New("reservation not allowed by policy")
	// ErrBucketFull returned when the job is entitled but its reservation bucket has no free slot
	ErrBucketFull = errors.New("reservation bucket is full")
	// ErrNoHostList returned when a forced reservation is requested for a job without a host list
	ErrNoHostList = errors.New("forced reservation requires a host list")
	// ErrMultiReqForce returned when a forced reservation is requested for a multi requirement job
	ErrMultiReqForce = errors.New("forced reservation not supported for multi requirement jobs")
	// ErrNoPreemption returned when no preemptible resources were located for a preemptor
	ErrNoPreemption = errors.New("no preemptible resources found")
	// ErrNoNodeSet returned when no node set can satisfy the request
	ErrNoNodeSet = errors.New("no node set contains adequate resources")
	// ErrCommitFailed returned when the reservation commit primitive rejects the allocation
	ErrCommitFailed = errors.New("reservation commit failed")
)

// Constant hold and event messages
const (
	HoldMsgNoReservation   = "cannot create reservation"
	HoldMsgNoResources     = "requested resources not available at any time"
	MsgPreviouslyReserved  = "job previously reserved to start in %s"
	MsgReservationDelayed  = "reservation completion for job '%s' delayed from %s to %s"
	MsgCannotReserve       = "cannot create reservation for job '%s' on partition %s"
	MsgBucketFull          = "rsv bucket is full - no reservation created"
	MsgPreemptRsvExists    = "no priority reservations created (preempt based backfill enabled)"
	MsgNoPreemptibleForJob = "no preemptible resources found for job"
)
