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

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/log"
)

// ----------------------------------
// reservation events
// ----------------------------------
type ReservationEvent int

const (
	CommitReservation ReservationEvent = iota
	ReleaseReservation
)

func (re ReservationEvent) String() string {
	return [...]string{"Commit", "Release"}[re]
}

// ----------------------------------
// reservation states
// ----------------------------------
type ReservationState int

const (
	RsvCreated ReservationState = iota
	RsvActive
	RsvReleased
)

func (rs ReservationState) String() string {
	return [...]string{"Created", "Active", "Released"}[rs]
}

// NewReservationState creates the lifecycle of a reservation:
// Created -> Active on commit, Created or Active -> Released on release.
// A released reservation never comes back.
func NewReservationState() *fsm.FSM {
	return fsm.NewFSM(
		RsvCreated.String(), fsm.Events{
			{
				Name: CommitReservation.String(),
				Src:  []string{RsvCreated.String()},
				Dst:  RsvActive.String(),
			}, {
				Name: ReleaseReservation.String(),
				Src:  []string{RsvCreated.String(), RsvActive.String()},
				Dst:  RsvReleased.String(),
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, event *fsm.Event) {
				if len(event.Args) == 0 {
					return
				}
				log.Log(log.Objects).Debug("reservation transition",
					zap.Any("reservation", event.Args[0]),
					zap.String("source", event.Src),
					zap.String("destination", event.Dst),
					zap.String("event", event.Event))
			},
		},
	)
}
