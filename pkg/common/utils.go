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

import (
	"time"

	"github.com/google/uuid"
)

// MaxTime is the scheduling horizon marker: a start or end time that never arrives.
var MaxTime = time.Unix(1<<40, 0).UTC()

// Infinite is used for unlimited wallclock limits.
const Infinite = time.Duration(1<<63 - 1)

// MaxT returns the later of the two times.
func MaxT(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MinT returns the earlier of the two times.
func MinT(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// AddDuration adds d to t saturating at MaxTime for infinite or overflowing durations.
func AddDuration(t time.Time, d time.Duration) time.Time {
	if d == Infinite || t.Equal(MaxTime) {
		return MaxTime
	}
	end := t.Add(d)
	if end.After(MaxTime) || end.Before(t) {
		return MaxTime
	}
	return end
}

// IsUnset returns true for the zero time, used for optional time arguments.
func IsUnset(t time.Time) bool {
	return t.IsZero()
}

// Relative formats the distance between now and t the way it is shown in messages.
func Relative(now, t time.Time) string {
	if t.Equal(MaxTime) {
		return "INFINITY"
	}
	return t.Sub(now).Truncate(time.Second).String()
}

func GetNewUUID() string {
	return uuid.NewString()
}
