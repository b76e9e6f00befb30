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

package trace

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
)

const (
	LevelKey = "level"
	PhaseKey = "phase"
	NameKey  = "name"
	StateKey = "state"
	InfoKey  = "info"

	RootLevel      = "root"
	JobLevel       = "job"
	ShapeLevel     = "shape"
	PartitionLevel = "partition"
	NodesLevel     = "nodes"

	PriorityReservePhase = "priorityReserve"
	ReservePhase         = "reserve"
	ForceReservePhase    = "forceReserve"
	SearchPhase          = "earliestStart"
	SelectNodeSetPhase   = "selectNodeSet"
	PreemptPhase         = "preemptionCandidates"

	ReservedState = "reserved"
	RejectedState = "rejected"
	FailedState   = "failed"
	SkipState     = "skip"
)

// StartSpanWrapper starts a span with the general tags set.
// The level tag is required and logs the span level (root, job, shape, ...).
// The phase tag is optional and logs the calling phase (reserve, earliestStart, ...).
// The name tag is optional and logs the related object identity.
// Spans must be finished in pairs with FinishActiveSpanWrapper:
//
//	span, _ := StartSpanWrapper(ctx, JobLevel, ReservePhase, job.ID)
//	defer FinishActiveSpanWrapper(ctx, state, "")
func StartSpanWrapper(ctx PlacementTraceContext, level, phase, name string) (opentracing.Span, error) {
	if ctx == nil {
		return opentracing.NoopTracer{}.StartSpan(""), nil
	}
	if level == "" {
		return opentracing.NoopTracer{}.StartSpan(""),
			fmt.Errorf("level field cannot be empty")
	}

	span, err := ctx.StartSpan(fmt.Sprintf("[%v]%v", level, phase))
	if err == nil {
		span.SetTag(LevelKey, level)
		if phase != "" {
			span.SetTag(PhaseKey, phase)
		}
		if name != "" {
			span.SetTag(NameKey, name)
		}
	}
	return span, err
}

// FinishActiveSpanWrapper sets the result tags and finishes the active span.
// The state tag logs the result (reserved, rejected, ...), the info tag a result message.
func FinishActiveSpanWrapper(ctx PlacementTraceContext, state, info string) error {
	if ctx == nil {
		return nil
	}

	span, err := ctx.ActiveSpan()
	if err == nil {
		if state != "" {
			span.SetTag(StateKey, state)
		}
		if info != "" {
			span.SetTag(InfoKey, info)
		}
		return ctx.FinishActiveSpan()
	}
	return err
}
