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

package nodeset

import (
	"time"

	"github.com/apache/yunikorn-placement/pkg/common/configs"
	"github.com/apache/yunikorn-placement/pkg/common/resources"
	"github.com/apache/yunikorn-placement/pkg/scheduler/objects"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type testNode struct {
	id       string
	procs    int
	mem      int
	tasks    int
	features []string
	classes  []string
}

func newNodeList(specs ...testNode) objects.NodeList {
	var nl objects.NodeList
	for _, s := range specs {
		node := objects.NewNode(s.id, "default", resources.NewProcMem(resources.Quantity(s.procs), resources.Quantity(s.mem)))
		node.Features = s.features
		node.Classes = s.classes
		nl = append(nl, objects.NodeTask{Node: node, TaskCount: s.tasks})
	}
	return nl
}

func newJob(tasks int, perTask *resources.Resource) *objects.Job {
	job := objects.NewJob("job-1", "testuser", objects.NewRequirement(tasks, perTask))
	job.WallClock = time.Hour
	return job
}

func newRequest(job *objects.Job, conf configs.NodeSetConfig) *Request {
	return &Request{
		Job:    job,
		Req:    job.Requirements[0],
		Start:  testNow,
		Now:    testNow,
		Config: conf,
		Depth:  -1,
	}
}
