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
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/apache/yunikorn-placement/pkg/common"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/log"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

type userUsage struct {
	end   time.Time
	procs resources.Quantity
}

// softLimitStart returns the earliest time from start on at which the job fits under the per user
// processor limit: the processors of the active and reserved work of the user live at start plus the
// processors of the job. The time moves to the end of the earliest finishing work that frees enough.
// A job that exceeds the limit on its own is not delayed.
func (ctx *Context) softLimitStart(job *objects.Job, partition string, start time.Time) time.Time {
	limit := ctx.conf().SoftLimits.MaxProcsPerUser
	if p := ctx.cluster.GetPartition(partition); p != nil {
		limit = p.SoftLimits.MaxProcsPerUser
	}
	if limit <= 0 {
		return start
	}
	max := resources.Quantity(limit)
	need := job.TotalProcs()
	if need > max {
		log.Log(log.Reserve).Debug("job exceeds the per user processor limit on its own",
			zap.String("jobID", job.ID),
			zap.Int64("procs", int64(need)),
			zap.Int("limit", limit))
		return start
	}
	var used resources.Quantity
	var live []userUsage
	for _, j := range ctx.cluster.GetJobs() {
		if j == job || j.Credential.User != job.Credential.User {
			continue
		}
		var end time.Time
		switch {
		case j.IsActive():
			if partition != "" && j.Partition != partition {
				continue
			}
			end = j.EndTime()
			if j.WallClock <= 0 {
				end = common.MaxTime
			}
		case j.Rsv != nil && !j.Rsv.IsReleased():
			if (partition != "" && j.Rsv.Partition != partition) || !j.Rsv.ActiveAt(start) {
				continue
			}
			end = j.Rsv.End
		default:
			continue
		}
		if !end.After(start) {
			continue
		}
		procs := j.TotalProcs()
		used += procs
		live = append(live, userUsage{end: end, procs: procs})
	}
	if used+need <= max {
		return start
	}
	sort.Slice(live, func(i, k int) bool {
		return live[i].end.Before(live[k].end)
	})
	for _, u := range live {
		used -= u.procs
		if used+need <= max {
			log.Log(log.Reserve).Debug("start moved to satisfy the per user processor limit",
				zap.String("jobID", job.ID),
				zap.String("user", job.Credential.User),
				zap.Time("start", u.end))
			return u.end
		}
	}
	return start
}
