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
	"time"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
)

// QOS carries the reservation entitlement settings of a quality of service.
type QOS struct {
	Name                      string
	NoReservation             bool
	QueueTimeRsvThreshold     time.Duration
	XFactorRsvThreshold       float64
	QueueTimeTriggerThreshold time.Duration
}

func NewQOS(conf configs.QOSConfig) *QOS {
	return &QOS{
		Name:                      conf.Name,
		NoReservation:             conf.NoReservation,
		QueueTimeRsvThreshold:     conf.QueueTimeRsvThreshold,
		XFactorRsvThreshold:       conf.XFactorRsvThreshold,
		QueueTimeTriggerThreshold: conf.QueueTimeTriggerThreshold,
	}
}

// QueueTimeThresholdReached returns true once the job queued longer than the QOS queue time threshold.
func (q *QOS) QueueTimeThresholdReached(job *Job, now time.Time) bool {
	return q != nil && q.QueueTimeRsvThreshold > 0 && job.QueueTime(now) > q.QueueTimeRsvThreshold
}

// XFactorThresholdReached returns true once the job expansion factor is above the QOS threshold.
func (q *QOS) XFactorThresholdReached(job *Job, now time.Time) bool {
	return q != nil && q.XFactorRsvThreshold > 0 && job.XFactor(now) > q.XFactorRsvThreshold
}
