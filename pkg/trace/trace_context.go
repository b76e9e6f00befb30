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
	"github.com/opentracing/opentracing-go/ext"
)

// PlacementTraceContext manages the spans of one placement attempt.
// Spans are started and finished in pairs, the latest unfinished span is the active one.
type PlacementTraceContext interface {
	// ActiveSpan returns the latest unfinished span, error if all spans are finished.
	ActiveSpan() (opentracing.Span, error)

	// StartSpan starts a span as a child of the active span, or as the root span of the trace.
	StartSpan(operationName string) (opentracing.Span, error)

	// FinishActiveSpan finishes the active span and makes its parent active.
	FinishActiveSpan() error
}

var _ PlacementTraceContext = &PlacementTraceContextImpl{}

// PlacementTraceContextImpl reports the spans to the tracer once they are finished.
// The root span "sampling.priority" tag is set to 1 to force reporting all spans if OnDemandFlag is true.
type PlacementTraceContextImpl struct {
	Tracer       opentracing.Tracer
	SpanStack    []opentracing.Span
	OnDemandFlag bool
}

// NewPlacementTraceContext returns a context over the tracer, a nil tracer uses the opentracing global tracer.
func NewPlacementTraceContext(tracer opentracing.Tracer, onDemand bool) *PlacementTraceContextImpl {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &PlacementTraceContextImpl{
		Tracer:       tracer,
		OnDemandFlag: onDemand,
	}
}

func (s *PlacementTraceContextImpl) ActiveSpan() (opentracing.Span, error) {
	if len(s.SpanStack) == 0 {
		return nil, fmt.Errorf("no active span")
	}
	return s.SpanStack[len(s.SpanStack)-1], nil
}

func (s *PlacementTraceContextImpl) StartSpan(operationName string) (opentracing.Span, error) {
	var newSpan opentracing.Span
	if span, err := s.ActiveSpan(); err != nil {
		newSpan = s.Tracer.StartSpan(operationName)
		if s.OnDemandFlag {
			ext.SamplingPriority.Set(newSpan, 1)
		}
	} else {
		newSpan = s.Tracer.StartSpan(operationName, opentracing.ChildOf(span.Context()))
	}
	s.SpanStack = append(s.SpanStack, newSpan)
	return newSpan, nil
}

func (s *PlacementTraceContextImpl) FinishActiveSpan() error {
	span, err := s.ActiveSpan()
	if err != nil {
		return err
	}
	span.Finish()
	s.SpanStack = s.SpanStack[:len(s.SpanStack)-1]
	return nil
}
